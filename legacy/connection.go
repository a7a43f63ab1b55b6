package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	log "log/slog"

	_ "github.com/go-sql-driver/mysql"
)

// Config contains configuration for connecting to the legacy store (read-only).
type Config struct {
	// URL is the mysql DSN.
	URL string
	// MaxOpenConns caps the pool; the legacy store is shared with production traffic.
	MaxOpenConns int
}

// Connection wraps the sql.DB pool and the Config used to create it.
type Connection struct {
	DB *sql.DB
	Config
}

var connection *Connection
var mux sync.Mutex

// IsConnectionInstantiated reports whether a global Connection has been created.
func IsConnectionInstantiated() bool {
	return connection != nil
}

// OpenConnection returns the existing global Connection or opens a new one
// using the provided config.
func OpenConnection(ctx context.Context, config Config) (*Connection, error) {
	if connection != nil {
		return connection, nil
	}
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		return connection, nil
	}
	if config.MaxOpenConns <= 0 {
		config.MaxOpenConns = 3
	}

	db, err := sql.Open("mysql", withParseTime(config.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy store: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("legacy store ping failed: %w", err)
	}
	log.Info("Opened legacy store connection", "max_open_conns", config.MaxOpenConns)

	connection = &Connection{DB: db, Config: config}
	return connection, nil
}

// CloseConnection closes and clears the global connection, if it exists.
func CloseConnection() error {
	if connection == nil {
		return nil
	}
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil
	}
	err := connection.DB.Close()
	connection = nil
	return err
}

// withParseTime ensures the driver maps DATETIME columns onto time.Time.
func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "parseTime=true"
}
