package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/gocraft/dbr/v2"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

const (
	tableMonitors    = "monitors"
	tableUserConfigs = "user_configs"
)

// Store implements monitor.Store on PostgreSQL.
type Store struct {
	conn   *dbr.Connection
	sess   *dbr.Session
	logger *zap.Logger
}

func New(dsn string, logger *zap.Logger) (*Store, error) {
	conn, err := dbr.Open("postgres", dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// set up connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewWithConnection(conn, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("successfully connected to PostgreSQL")

	return s, nil
}

// NewWithConnection wraps an already opened connection without pinging or
// migrating it.
func NewWithConnection(conn *dbr.Connection, logger *zap.Logger) *Store {
	return &Store{
		conn:   conn,
		sess:   conn.NewSession(nil),
		logger: logger,
	}
}

// Migrate creates the tables and indexes when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		s.logger.Error("failed to apply schema", zap.Error(err))
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
