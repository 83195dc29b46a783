package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerConfig holds configuration for a badger-backed store.
type BadgerConfig struct {
	// Path is the directory for the database files. Ignored when InMemory
	// is true.
	Path string

	// InMemory enables in-memory mode with no disk persistence.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives badger's internal logging. Nil disables it.
	Logger *slog.Logger

	// Prefix namespaces the keys, so one database can be shared with other
	// data. Defaults to "formstate:".
	Prefix string
}

// DefaultBadgerConfig returns durable defaults for production use.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a configuration for tests: no disk I/O, no
// sync writes.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore persists form values in an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "formstate:"
	}
	return &BadgerStore{db: db, prefix: prefix}, nil
}

func (b *BadgerStore) key(formID string) []byte {
	return []byte(b.prefix + formID)
}

func (b *BadgerStore) Save(ctx context.Context, formID string, values map[string]any) error {
	data, err := Encode(values)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(b.key(formID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save form %q: %w", formID, err)
	}
	return nil
}

func (b *BadgerStore) Load(ctx context.Context, formID string) (map[string]any, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.key(formID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %q: %w", formID, err)
	}
	return Decode(data)
}

func (b *BadgerStore) Clear(ctx context.Context, formID string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(b.key(formID))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to clear form %q: %w", formID, err)
	}
	return nil
}

// Close releases the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

var _ Store = (*BadgerStore)(nil)
