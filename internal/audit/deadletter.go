// Arbiter - Admin Portal Authorization & Audit Core
// Copyright 2026 Arbiter Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arbiterhq/arbiter

package audit

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/arbiterhq/arbiter/internal/logging"
	"github.com/arbiterhq/arbiter/internal/models"
)

const deadLetterKeyPrefix = "audit_dlq:"

// DeadLetter parks critical audit entries that could not be written
// to primary storage, on local disk via BadgerDB. Parked entries are
// replayed into the store at startup and can be replayed manually.
type DeadLetter struct {
	db *badger.DB
}

// OpenDeadLetter opens (or creates) the dead letter database at path.
func OpenDeadLetter(path string) (*DeadLetter, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening dead letter store at %s: %w", path, err)
	}
	return &DeadLetter{db: db}, nil
}

// NewDeadLetter wraps an already-open BadgerDB, used by tests with an
// in-memory database.
func NewDeadLetter(db *badger.DB) *DeadLetter {
	return &DeadLetter{db: db}
}

// Park stores one entry. Keys are prefix + entry ID, so parking the
// same entry twice is idempotent.
func (d *DeadLetter) Park(entry *models.AuditLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(deadLetterKeyPrefix+entry.ID), data)
	})
}

// Replay attempts to write every parked entry into store, deleting
// each on success. Entries that still fail stay parked for the next
// replay. Returns the number of entries successfully replayed.
func (d *DeadLetter) Replay(ctx context.Context, store Store) (int, error) {
	entries, err := d.list()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	replayed := 0
	for _, entry := range entries {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := store.Save(writeCtx, entry)
		cancel()
		if err != nil {
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("Dead letter replay failed for entry")
			continue
		}

		if err := d.remove(entry.ID); err != nil {
			logging.Warn().Err(err).Str("entry_id", entry.ID).Msg("Failed to remove replayed entry")
			continue
		}
		replayed++
	}

	if replayed > 0 {
		logging.Info().Int("replayed", replayed).Int("parked", len(entries)).Msg("Replayed dead letter audit entries")
	}
	return replayed, nil
}

// Count returns the number of currently parked entries.
func (d *DeadLetter) Count() (int, error) {
	count := 0
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(deadLetterKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close flushes and closes the underlying database.
func (d *DeadLetter) Close() error {
	return d.db.Close()
}

func (d *DeadLetter) list() ([]*models.AuditLogEntry, error) {
	var entries []*models.AuditLogEntry

	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(deadLetterKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry models.AuditLogEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					logging.Warn().Err(err).Msg("Skipping corrupt dead letter entry")
					return nil
				}
				entries = append(entries, &entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing dead letter entries: %w", err)
	}
	return entries, nil
}

func (d *DeadLetter) remove(id string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(deadLetterKeyPrefix + id))
	})
}
