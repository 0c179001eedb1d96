// Package history keeps committed transcripts on disk.
package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.aimuz.me/dictate/internal/types"
)

// DefaultTTL is how long a transcript is kept.
const DefaultTTL = 30 * 24 * time.Hour

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 50

var keyPrefix = []byte("tr/")

// Store is a Badger-backed transcript history ordered by creation time.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates the history database in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a history that is lost on Close.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, ttl: DefaultTTL}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordTranscript stores rec. A missing ID or timestamp is filled in.
func (s *Store) RecordTranscript(ctx context.Context, rec types.TranscriptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt <= 0 {
		rec.CreatedAt = time.Now().UnixMilli()
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(recordKey(rec), value)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("store transcript: %w", err)
	}
	return nil
}

// Recent returns up to limit transcripts, newest first.
func (s *Store) Recent(limit int) ([]types.TranscriptRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var out []types.TranscriptRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, keyPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(keyPrefix) && len(out) < limit; it.Next() {
			var rec types.TranscriptRecord
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			})
			if err != nil {
				slog.Warn("skip unreadable transcript", "key", string(it.Item().Key()), "error", err)
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// Delete removes one transcript.
func (s *Store) Delete(rec types.TranscriptRecord) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(rec))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// Clear removes all transcripts.
func (s *Store) Clear() error {
	if err := s.db.DropPrefix(keyPrefix); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// recordKey sorts by creation time: prefix, big-endian ms, id.
func recordKey(rec types.TranscriptRecord) []byte {
	key := make([]byte, 0, len(keyPrefix)+8+len(rec.ID))
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(rec.CreatedAt))
	return append(key, rec.ID...)
}
