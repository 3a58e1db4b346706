package database

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/dansontsui/aistock-analysis/internal/models"
)

// DB wraps the database connection and caches the latest report, which
// every rebalance run reads as the prior portfolio.
type DB struct {
	conn *sql.DB

	mu     sync.RWMutex
	latest *models.Report
}

// New creates a new database connection
func New(connectionString string) (*DB, error) {
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewWithConn wraps an existing connection. Used by tests.
func NewWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database is reachable
func (db *DB) Ping() error {
	return db.conn.Ping()
}

func (db *DB) cacheLatest(r *models.Report) {
	db.mu.Lock()
	db.latest = r
	db.mu.Unlock()
}

func (db *DB) cachedLatest() *models.Report {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.latest
}
