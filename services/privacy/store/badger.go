// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/privacyguard/services/privacy"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Dir is the database directory. Empty opens an in-memory database.
	Dir string

	// SyncWrites makes every commit durable before returning.
	SyncWrites bool

	// GCInterval is how often value log GC runs. Zero disables it.
	// Ignored for in-memory databases.
	GCInterval time.Duration

	// Logger receives Badger's internal log output. Nil silences it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for dir.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:        dir,
		SyncWrites: true,
		GCInterval: 5 * time.Minute,
	}
}

// badgerLogger adapts slog.Logger to badger.Logger.
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

// BadgerStore implements ProfileStore over BadgerDB.
//
// Description:
//
//	Every call runs in its own transaction. Reads copy values out of the
//	transaction before decoding, so returned records are owned by the
//	caller.
//
// Thread Safety: Safe for concurrent use.
type BadgerStore struct {
	db       *badger.DB
	inMemory bool

	gcStop   chan struct{}
	gcDone   chan struct{}
	stopOnce sync.Once
}

// OpenBadger opens (or creates) a BadgerStore.
//
// Inputs:
//   - cfg: Store configuration. An empty Dir opens an in-memory database.
//
// Outputs:
//   - *BadgerStore: The opened store. Caller must call Close.
//   - error: Non-nil if the directory cannot be created or Badger fails to open.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	inMemory := cfg.Dir == ""
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	s := &BadgerStore{db: db, inMemory: inMemory}
	if cfg.GCInterval > 0 && !inMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.Logger)
	}
	return s, nil
}

// InMemory reports whether the store is backed by memory only.
func (s *BadgerStore) InMemory() bool { return s.inMemory }

// Close stops GC and closes the database. Safe to call more than once.
func (s *BadgerStore) Close() error {
	var err error
	s.stopOnce.Do(func() {
		if s.gcStop != nil {
			close(s.gcStop)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

func (s *BadgerStore) runGC(interval time.Duration, logger *slog.Logger) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// RunValueLogGC rewrites at most one file per call; loop until
			// there is nothing left worth rewriting.
			for s.db.RunValueLogGC(0.5) == nil {
			}
			if logger != nil {
				logger.Debug("privacy store value log GC pass complete")
			}
		}
	}
}

// GetProfile implements ProfileStore.
func (s *BadgerStore) GetProfile(ctx context.Context, username string) (privacy.Record, error) {
	if username == "" {
		return nil, ErrInvalidKey
	}
	return s.getRecord(ctx, profileKey(username))
}

// PutProfile implements ProfileStore.
func (s *BadgerStore) PutProfile(ctx context.Context, username string, rec privacy.Record) error {
	if username == "" {
		return ErrInvalidKey
	}
	return s.putJSON(ctx, profileKey(username), rec)
}

// GetSettings implements ProfileStore.
func (s *BadgerStore) GetSettings(ctx context.Context, username string) (*privacy.UserPrivacySettings, error) {
	if username == "" {
		return nil, ErrInvalidKey
	}
	data, err := s.get(ctx, settingsKey(username))
	if err != nil {
		return nil, err
	}
	var settings privacy.UserPrivacySettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("decode settings for %s: %w", username, err)
	}
	return &settings, nil
}

// PutSettings implements ProfileStore.
func (s *BadgerStore) PutSettings(ctx context.Context, username string, settings *privacy.UserPrivacySettings) error {
	if username == "" {
		return ErrInvalidKey
	}
	if settings == nil {
		return errors.New("store: nil settings")
	}
	return s.putJSON(ctx, settingsKey(username), settings)
}

// GetEndpoint implements ProfileStore.
func (s *BadgerStore) GetEndpoint(ctx context.Context, username, endpoint string) (privacy.Record, error) {
	if username == "" || endpoint == "" {
		return nil, ErrInvalidKey
	}
	return s.getRecord(ctx, endpointKey(username, endpoint))
}

// PutEndpoint implements ProfileStore.
func (s *BadgerStore) PutEndpoint(ctx context.Context, username, endpoint string, rec privacy.Record) error {
	if username == "" || endpoint == "" {
		return ErrInvalidKey
	}
	return s.putJSON(ctx, endpointKey(username, endpoint), rec)
}

// ListEndpoints returns the endpoint names stored for username, in key order.
func (s *BadgerStore) ListEndpoints(ctx context.Context, username string) ([]string, error) {
	if username == "" {
		return nil, ErrInvalidKey
	}
	prefix := endpointUserPrefix(username)
	var names []string
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list endpoints for %s: %w", username, err)
	}
	return names, nil
}

// DeleteProfile implements ProfileStore. Missing keys are not an error.
func (s *BadgerStore) DeleteProfile(ctx context.Context, username string) error {
	if username == "" {
		return ErrInvalidKey
	}
	endpoints, err := s.ListEndpoints(ctx, username)
	if err != nil {
		return err
	}
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		keys := [][]byte{profileKey(username), settingsKey(username)}
		for _, name := range endpoints {
			keys = append(keys, endpointKey(username, name))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", username, err)
	}
	return nil
}

func (s *BadgerStore) getRecord(ctx context.Context, key []byte) (privacy.Record, error) {
	data, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	rec, err := privacy.DecodeRecordBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

func (s *BadgerStore) get(ctx context.Context, key []byte) ([]byte, error) {
	var data []byte
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *BadgerStore) putJSON(ctx context.Context, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	err = s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := s.db.NewTransaction(true)
	defer txn.Discard()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

func (s *BadgerStore) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	return fn(txn)
}

var _ ProfileStore = (*BadgerStore)(nil)
