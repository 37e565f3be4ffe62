package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const notifyChannel = "storefront_kv_changes"

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

func (c *Credentials) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName)
}

// PostgresStore keeps values in the kv_store table and uses LISTEN/NOTIFY to tell
// other processes about writes.
type PostgresStore struct {
	db     *sql.DB
	dsn    string
	origin string
	logger *slog.Logger

	mu        sync.Mutex
	closed    bool
	listeners []*pq.Listener
	wg        sync.WaitGroup
}

func NewPostgresStore(cred *Credentials, logger *slog.Logger) (*PostgresStore, error) {
	dsn := cred.dsn()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	return &PostgresStore{
		db:     db,
		dsn:    dsn,
		origin: uuid.New().String(),
		logger: logger,
	}, nil
}

func (s *PostgresStore) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(s.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (s *PostgresStore) Origin() string {
	return s.origin
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO kv_store (key, value, updated_at) VALUES ($1, $2, NOW())
	          ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	return s.writeAndNotify(ctx, ChangeEvent{Key: key, Value: value, Origin: s.origin}, query, key, value)
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	return s.writeAndNotify(ctx, ChangeEvent{Key: key, Deleted: true, Origin: s.origin},
		`DELETE FROM kv_store WHERE key = $1`, key)
}

// writeAndNotify runs the statement and the notification in one transaction, so
// listeners hear about the write only once it is committed.
func (s *PostgresStore) writeAndNotify(ctx context.Context, ev ChangeEvent, query string, args ...any) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", ev.Key, err)
	}
	if ev.Deleted {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify change: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Subscribe(ctx context.Context) (<-chan ChangeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	listener := pq.NewListener(s.dsn, 100*time.Millisecond, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil && s.logger != nil {
			s.logger.Warn("postgres listener event", "event", ev, "error", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}
	s.listeners = append(s.listeners, listener)

	sub := newSubscriber()
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		sub.run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		defer sub.stop()
		s.forward(ctx, listener, sub)
	}()
	return sub.out, nil
}

func (s *PostgresStore) forward(ctx context.Context, listener *pq.Listener, sub *subscriber) {
	for {
		select {
		case <-ctx.Done():
			_ = listener.Close()
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// connection was re-established; notifications in between are lost
				continue
			}
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
				if s.logger != nil {
					s.logger.Warn("dropping malformed change event", "error", err)
				}
				continue
			}
			if ev.Origin == s.origin {
				continue
			}
			sub.push(ev)
		}
	}
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listeners := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	for _, l := range listeners {
		_ = l.Close()
	}
	s.wg.Wait()
	return s.db.Close()
}
