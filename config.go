package catmig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultChunkSize is the record count per chunk when CHUNK_SIZE is unset.
	DefaultChunkSize = 500
	// DefaultLockTTL bounds a chunk lease; a crashed worker's lease expires after this long.
	DefaultLockTTL = 5 * time.Minute
	// DefaultSnapshotPath is where the pre-exported legacy product array is looked for.
	DefaultSnapshotPath = "data/products/all-products.json"
	// TestModeRecordCap caps the total record count when TEST_MODE is enabled.
	TestModeRecordCap = 100
)

// Config holds the environment-driven configuration of one worker process.
type Config struct {
	// LegacyDatabaseURL is the legacy store DSN (OLD_DATABASE_URL or LEGACY_DATABASE_URL).
	LegacyDatabaseURL string
	// ProductsDatabaseURL is the target store DSN.
	ProductsDatabaseURL string
	// RedisURL is the coordination service connection string.
	RedisURL string
	// WorkerID identifies this process for lease ownership. Defaults to a random token.
	WorkerID string
	// TestMode caps total records to TestModeRecordCap for smoke tests.
	TestMode bool
	// MaxRetries bounds per-operation retries against either store.
	MaxRetries int
	// RetryDelay is the base backoff delay for per-operation retries.
	RetryDelay time.Duration
	// ChunkSize is the record count per chunk.
	ChunkSize int
	// LockTTL is the chunk lease TTL.
	LockTTL time.Duration
	// SnapshotPath points at the optional pre-exported product snapshot.
	SnapshotPath string
}

// LoadConfig reads the worker configuration from the environment. Missing
// required variables yield a ConfigurationError.
func LoadConfig() (Config, error) {
	c := Config{
		WorkerID:     os.Getenv("WORKER_ID"),
		MaxRetries:   5,
		RetryDelay:   1 * time.Second,
		ChunkSize:    DefaultChunkSize,
		LockTTL:      DefaultLockTTL,
		SnapshotPath: DefaultSnapshotPath,
	}

	c.LegacyDatabaseURL = os.Getenv("OLD_DATABASE_URL")
	if c.LegacyDatabaseURL == "" {
		c.LegacyDatabaseURL = os.Getenv("LEGACY_DATABASE_URL")
	}

	c.ProductsDatabaseURL = os.Getenv("PRODUCTS_DATABASE_URL")
	if c.ProductsDatabaseURL == "" {
		return c, Error[string]{Code: ConfigurationError, Err: fmt.Errorf("PRODUCTS_DATABASE_URL is required")}
	}
	c.RedisURL = os.Getenv("REDIS_URL")
	if c.RedisURL == "" {
		return c, Error[string]{Code: ConfigurationError, Err: fmt.Errorf("REDIS_URL is required")}
	}

	if c.WorkerID == "" {
		c.WorkerID = "worker-" + NewUUID().String()
	}
	c.TestMode = parseBool(os.Getenv("TEST_MODE"))

	var err error
	if c.MaxRetries, err = parseIntDefault("MAX_RETRIES", c.MaxRetries); err != nil {
		return c, err
	}
	retryDelaySecs, err := parseIntDefault("RETRY_DELAY", int(c.RetryDelay/time.Second))
	if err != nil {
		return c, err
	}
	c.RetryDelay = time.Duration(retryDelaySecs) * time.Second
	if c.ChunkSize, err = parseIntDefault("CHUNK_SIZE", c.ChunkSize); err != nil {
		return c, err
	}
	lockTTLSecs, err := parseIntDefault("LOCK_TTL", int(c.LockTTL/time.Second))
	if err != nil {
		return c, err
	}
	c.LockTTL = time.Duration(lockTTLSecs) * time.Second
	if p := os.Getenv("SNAPSHOT_PATH"); p != "" {
		c.SnapshotPath = p
	}
	return c, nil
}

func parseBool(s string) bool {
	switch s {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	}
	return false
}

func parseIntDefault(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def, Error[string]{Code: ConfigurationError, Err: fmt.Errorf("%s must be a non-negative integer, got %q", name, s)}
	}
	return n, nil
}
