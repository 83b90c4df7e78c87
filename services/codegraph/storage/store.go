// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists knowledge graphs in BadgerDB.
//
// One Store holds one repository's graph. Nodes and relationships are
// JSON-encoded under prefixed keys, with secondary index keys for
// per-file membership, adjacency, and full-text tokens:
//
//	n:<node id>                  node record
//	r:<rel id>                   relationship record
//	f:<file path>\x00<node id>   file membership index
//	o:<source id>\x00<rel id>    outgoing adjacency index
//	i:<target id>\x00<rel id>    incoming adjacency index
//	t:<token>\x00<node id>       full-text token index
//	v:<node id>                  embedding vector
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a node id has no record.
var ErrNotFound = errors.New("storage: not found")

// Key prefixes. The \x00 separator never appears in node ids or repository
// paths, so prefix scans cannot bleed across entries.
const (
	prefixNode     = "n:"
	prefixRel      = "r:"
	prefixFile     = "f:"
	prefixOutgoing = "o:"
	prefixIncoming = "i:"
	prefixToken    = "t:"
	prefixVector   = "v:"
	keySep         = "\x00"
)

// Config holds configuration for a Store's BadgerDB instance.
type Config struct {
	// Path is the directory for database files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). For tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: synchronous writes and value
// log GC every five minutes.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: in-memory, no sync, no
// GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed graph store.
//
// Thread Safety: safe for concurrent use; BadgerDB transactions provide
// snapshot isolation between the read path and a concurrent reindex.
type Store struct {
	db       *badger.DB
	gcStop   chan struct{}
	gcDone   chan struct{}
	inMemory bool
	logger   *slog.Logger
}

// Open creates and opens a Store with the given configuration.
//
// Description:
//
//	Opens a BadgerDB database at the configured path, or in memory when
//	InMemory is set, and starts the value log GC loop if configured.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the path is invalid or the database cannot open.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("storage: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.Default()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db, inMemory: cfg.InMemory, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gcStop = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// OpenInMemory opens an in-memory store for testing. Data is lost on Close.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gcStop != nil {
		close(s.gcStop)
		<-s.gcDone
		s.gcStop = nil
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				s.logger.Debug("badger value log GC completed")
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// withTxn executes fn in a read-write transaction, committing on nil.
func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
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

// withReadTxn executes fn in a read-only transaction.
func (s *Store) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(txn)
}

// scanPrefix iterates keys under a prefix, invoking fn with each key and
// value. Returning a non-nil error from fn stops the scan.
func scanPrefix(txn *badger.Txn, prefix string, needValues bool, fn func(key string, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = needValues
	opts.Prefix = []byte(prefix)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := string(item.Key())
		var value []byte
		if needValues {
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			value = v
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return nil
}
