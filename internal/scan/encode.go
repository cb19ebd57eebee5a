package scan

import "encoding/base64"

// Image is an uploaded photo in its transferable form.
type Image struct {
	Data      []byte
	MediaType string
}

// EncodeImage wraps raw image bytes with their declared media type.
func EncodeImage(data []byte, mediaType string) Image {
	return Image{Data: data, MediaType: mediaType}
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the self-contained reference stored with a scan.
func (i Image) DataURL() string {
	return "data:" + i.MediaType + ";base64," + i.Base64()
}
