// Package config reads server settings from flags, the environment and an
// optional .env file. Flags win over the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/erazemk/prehrana/internal/vision"
)

// DefaultMaxUpload is the upload size limit in bytes.
const DefaultMaxUpload = 10 << 20

// Storage backends for scans and goals.
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// Config holds the server settings.
type Config struct {
	DBPath  string
	Addr    string
	LogPath string

	Backend  string
	MongoURI string
	MongoDB  string

	GeminiAPIKey string
	GeminiModel  string

	// JWTSecret is empty when the secret should come from the database.
	JWTSecret string

	MaxUpload   int64
	MaxImageDim int
	Location    *time.Location
}

const usage = `Usage: prehrana [flags]

Flags:
  -d, -db <path>          SQLite database path (default: prehrana.sqlite3, env PREHRANA_DB)
  -a, -addr <host:port>   listen address (default: :8080, env PREHRANA_ADDR)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -backend <name>         scan and goal storage: sqlite or mongo (env PREHRANA_BACKEND)
  -mongo-uri <uri>        MongoDB connection string (env MONGO_URI)
  -mongo-db <name>        MongoDB database name (default: prehrana)
  -gemini-model <name>    Gemini model (default: ` + vision.DefaultModel + `)
  -max-upload <bytes>     upload size limit (default: 10 MiB)
  -max-image-dim <px>     downscale images sent to the model (default: 0, off)
  -tz <zone>              time zone for daily goals (default: server local, env TZ)
  -h, -help               show this help and exit

Environment:
  GEMINI_API_KEY          Gemini API key (required)
  JWT_SECRET              token signing secret (default: generated and stored in the database)
`

// Load reads .env from the working directory, if present, and parses args.
// It returns flag.ErrHelp when help was requested.
func Load(args []string, output io.Writer) (*Config, error) {
	return load(args, output, ".env")
}

func load(args []string, output io.Writer, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
	}

	maxUpload, err := envInt("PREHRANA_MAX_UPLOAD", DefaultMaxUpload)
	if err != nil {
		return nil, err
	}
	maxDim, err := envInt("PREHRANA_MAX_IMAGE_DIM", 0)
	if err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("prehrana", flag.ContinueOnError)
	fs.SetOutput(output)

	dbDefault := envOr("PREHRANA_DB", "prehrana.sqlite3")
	fs.StringVar(&cfg.DBPath, "db", dbDefault, "")
	fs.StringVar(&cfg.DBPath, "d", dbDefault, "")

	addrDefault := envOr("PREHRANA_ADDR", ":8080")
	fs.StringVar(&cfg.Addr, "addr", addrDefault, "")
	fs.StringVar(&cfg.Addr, "a", addrDefault, "")

	fs.StringVar(&cfg.LogPath, "log", "", "")
	fs.StringVar(&cfg.LogPath, "l", "", "")

	fs.StringVar(&cfg.Backend, "backend", envOr("PREHRANA_BACKEND", BackendSQLite), "")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", os.Getenv("MONGO_URI"), "")
	fs.StringVar(&cfg.MongoDB, "mongo-db", envOr("MONGO_DB", "prehrana"), "")
	fs.StringVar(&cfg.GeminiModel, "gemini-model", envOr("GEMINI_MODEL", vision.DefaultModel), "")
	fs.Int64Var(&cfg.MaxUpload, "max-upload", int64(maxUpload), "")
	fs.IntVar(&cfg.MaxImageDim, "max-image-dim", maxDim, "")

	var tz string
	fs.StringVar(&tz, "tz", os.Getenv("TZ"), "")

	fs.Usage = func() { fmt.Fprint(output, usage) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	switch cfg.Backend {
	case BackendSQLite:
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("-mongo-uri is required with -backend=mongo")
		}
	default:
		return nil, fmt.Errorf("unknown backend %q (want sqlite or mongo)", cfg.Backend)
	}

	if cfg.MaxUpload <= 0 {
		return nil, fmt.Errorf("-max-upload must be positive")
	}
	if cfg.MaxImageDim < 0 {
		return nil, fmt.Errorf("-max-image-dim must not be negative")
	}

	cfg.Location = time.Local
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("loading time zone: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
