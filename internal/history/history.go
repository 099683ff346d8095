// Package history keeps a small local log of statement uploads handled by
// the server.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

const bucketName = "parses"

// Entry summarises one parsed upload.
type Entry struct {
	ID           string            `json:"id"`
	Filename     string            `json:"filename"`
	Size         int               `json:"size"`
	ParserUsed   models.ParserKind `json:"parser_used"`
	FileKind     models.FileKind   `json:"file_kind"`
	BankDetected string            `json:"bank_detected,omitempty"`
	Transactions int               `json:"transactions"`
	Errors       int               `json:"errors"`
	Warnings     int               `json:"warnings"`
	ParsedAt     time.Time         `json:"parsed_at"`
}

// NewEntry builds an entry for result with a time-ordered ID.
func NewEntry(filename string, size int, result *models.StatementParseResult) (Entry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("generating entry id: %w", err)
	}
	return Entry{
		ID:           id.String(),
		Filename:     filename,
		Size:         size,
		ParserUsed:   result.ParserUsed,
		FileKind:     result.FileKind,
		BankDetected: result.BankDetected,
		Transactions: len(result.Transactions),
		Errors:       len(result.Errors),
		Warnings:     len(result.Warnings),
		ParsedAt:     time.Now().UTC(),
	}, nil
}

// BoltStore persists entries in a bbolt file keyed by entry ID. IDs sort by
// creation time, so key order is chronological.
type BoltStore struct {
	db *bbolt.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Record saves an entry.
func (s *BoltStore) Record(entry Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("history entry has no id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling entry: %w", err)
		}
		return tx.Bucket([]byte(bucketName)).Put([]byte(entry.ID), data)
	})
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (s *BoltStore) List(limit int) ([]Entry, error) {
	entries := make([]Entry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) == limit {
				break
			}
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshaling entry %s: %w", k, err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
