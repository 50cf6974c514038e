// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
)

// keyPrefix namespaces task records inside the database.
const keyPrefix = "task/"

// BadgerConfig configures a Badger store.
type BadgerConfig struct {
	// Dir holds the database files. Ignored when InMemory is true.
	Dir string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives badger's internal log lines. Nil silences them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger.Logger.
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
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Badger is a Store backed by an embedded BadgerDB.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) the task database described by cfg.
// The caller must Close the store.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("task store directory is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
			return nil, fmt.Errorf("create task store directory %s: %w", cfg.Dir, err)
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
		return nil, fmt.Errorf("open task store: %w", err)
	}
	return &Badger{db: db}, nil
}

// Close releases the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func taskKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func (b *Badger) Get(_ context.Context, id string) (datatypes.AsyncTask, error) {
	var task datatypes.AsyncTask
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(taskKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &task)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return datatypes.AsyncTask{}, ErrNotFound
	}
	if err != nil {
		return datatypes.AsyncTask{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

func (b *Badger) Put(_ context.Context, task datatypes.AsyncTask) error {
	if task.TaskID == "" {
		return errors.New("task id is empty")
	}
	val, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", task.TaskID, err)
	}
	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(taskKey(task.TaskID), val)
	}); err != nil {
		return fmt.Errorf("put task %s: %w", task.TaskID, err)
	}
	return nil
}

// Update runs fn inside one read-write transaction. A commit that conflicts
// with a concurrent writer is retried against the fresh value until it
// lands or ctx ends.
func (b *Badger) Update(ctx context.Context, id string, fn UpdateFunc) (datatypes.AsyncTask, error) {
	for {
		if err := ctx.Err(); err != nil {
			return datatypes.AsyncTask{}, err
		}
		next, err := b.update(id, fn)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return next, err
	}
}

func (b *Badger) update(id string, fn UpdateFunc) (datatypes.AsyncTask, error) {
	var current, next datatypes.AsyncTask
	var fnErr error
	err := b.db.Update(func(txn *badger.Txn) error {
		found := true
		item, err := txn.Get(taskKey(id))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			found = false
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return fmt.Errorf("decode task %s: %w", id, err)
			}
		}

		next, fnErr = fn(current, found)
		if fnErr != nil {
			return fnErr
		}
		if err := checkUpdated(id, next); err != nil {
			fnErr = err
			return err
		}
		val, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode task %s: %w", id, err)
		}
		return txn.Set(taskKey(id), val)
	})
	switch {
	case fnErr != nil:
		return current, fnErr
	case errors.Is(err, badger.ErrConflict):
		return datatypes.AsyncTask{}, err
	case err != nil:
		return datatypes.AsyncTask{}, fmt.Errorf("update task %s: %w", id, err)
	}
	return next, nil
}

func (b *Badger) List(ctx context.Context) ([]datatypes.AsyncTask, error) {
	var out []datatypes.AsyncTask
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var task datatypes.AsyncTask
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &task)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, task)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if out == nil {
		out = []datatypes.AsyncTask{}
	}
	sortByRecency(out)
	return out, nil
}

func (b *Badger) Delete(_ context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(taskKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Delete(taskKey(id))
	})
}
