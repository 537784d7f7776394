// Package postgres provides a prefz.Store backed by a PostgreSQL table,
// with change notifications via LISTEN/NOTIFY.
//
// The backing table needs key and value columns:
//
//	CREATE TABLE IF NOT EXISTS settings (
//	    key   TEXT PRIMARY KEY,
//	    value BYTEA NOT NULL
//	);
//
// Writes through this Store notify the configured channel themselves.
// For changes made by other writers to be observed, install a trigger:
//
//	CREATE OR REPLACE FUNCTION notify_settings_change() RETURNS trigger AS $$
//	BEGIN
//	    PERFORM pg_notify('prefz_settings', COALESCE(NEW.key, OLD.key));
//	    RETURN NEW;
//	END;
//	$$ LANGUAGE plpgsql;
//
//	CREATE TRIGGER settings_change_trigger
//	    AFTER INSERT OR UPDATE OR DELETE ON settings
//	    FOR EACH ROW EXECUTE FUNCTION notify_settings_change();
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zoobzio/prefz"
)

// Store is a prefz.Store persisting to a PostgreSQL table.
type Store struct {
	pool    *pgxpool.Pool
	table   string
	channel string
}

// Option configures a Store.
type Option func(*Store)

// WithTable sets the table name. Defaults to "settings".
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// WithChannel sets the notification channel name used with pg_notify.
// Defaults to "prefz_settings".
func WithChannel(channel string) Option {
	return func(s *Store) {
		s.channel = channel
	}
}

// New creates a Store using the given connection pool. The caller retains
// ownership of the pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		pool:    pool,
		table:   "settings",
		channel: "prefz_settings",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the bytes stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", s.table)
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set upserts value under key and notifies the channel.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value",
		s.table,
	)
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", s.channel, key)
	return err
}

// Delete removes key and notifies the channel. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", s.table)
	tag, err := s.pool.Exec(ctx, query, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	_, err = s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", s.channel, key)
	return err
}

// Watch listens on the notification channel and invokes fn with the key's
// current bytes whenever a notification for key arrives, or with ok=false
// when the row is gone.
func (s *Store) Watch(ctx context.Context, key string, fn func(raw []byte, ok bool)) (prefz.CancelFunc, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, fmt.Sprintf("LISTEN %s", s.channel)); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen on channel %s: %w", s.channel, err)
	}

	watchCtx, stop := context.WithCancel(ctx)

	go func() {
		defer conn.Release()

		for {
			notification, err := conn.Conn().WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() != nil {
					return
				}
				continue
			}

			// One channel carries notifications for every key in the table.
			if notification.Payload != key {
				continue
			}

			raw, ok, err := s.Get(watchCtx, key)
			if err != nil {
				continue
			}
			fn(raw, ok)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(stop)
	}
	return cancel, nil
}

// Ensure Store implements prefz.Store.
var _ prefz.Store = (*Store)(nil)
