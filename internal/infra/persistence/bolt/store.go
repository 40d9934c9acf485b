// Package bolt provides an embedded bbolt-backed persistent store. Each
// record and setting is kept under its own key so the file stays inspectable
// with standard bolt tooling.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agroconsole/internal/infra/persistence/memory"
	"agroconsole/pkg/domain"

	"go.etcd.io/bbolt"
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	bucketRecords  = "records"  // key: record ID -> Record JSON
	bucketSettings = "settings" // key: setting key -> Setting JSON
)

// Store mirrors the in-memory store into a bbolt file after every commit.
type Store struct {
	*memory.Store
	db   *bbolt.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the bolt file at path and hydrates state from it.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "agroconsole.bolt"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketRecords, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var snapshot memory.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(bucketRecords)).ForEach(func(k, v []byte) error {
			var rec domain.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			snapshot.Records = append(snapshot.Records, rec)
			return nil
		}); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketSettings)).ForEach(func(k, v []byte) error {
			var st domain.Setting
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("decode setting %s: %w", k, err)
			}
			snapshot.Settings = append(snapshot.Settings, st)
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.ImportState(snapshot)
	return nil
}

// persist rewrites both buckets inside a single bolt transaction.
func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketRecords, bucketSettings} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		records, err := tx.CreateBucket([]byte(bucketRecords))
		if err != nil {
			return err
		}
		for _, rec := range snapshot.Records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode record %s: %w", rec.ID, err)
			}
			if err := records.Put([]byte(rec.ID), data); err != nil {
				return err
			}
		}
		settings, err := tx.CreateBucket([]byte(bucketSettings))
		if err != nil {
			return err
		}
		for _, st := range snapshot.Settings {
			data, err := json.Marshal(st)
			if err != nil {
				return fmt.Errorf("encode setting %s: %w", st.Key, err)
			}
			if err := settings.Put([]byte(st.Key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// RunInTransaction applies fn in memory and writes the committed state to bolt.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(); err != nil {
		return res, fmt.Errorf("persist bolt: %w", err)
	}
	return res, nil
}

// ImportSeed loads seed data and writes the result to bolt.
func (s *Store) ImportSeed(ctx context.Context, seed domain.Seed) (int, error) {
	n, err := s.Store.ImportSeed(ctx, seed)
	if err != nil {
		return n, err
	}
	if err := s.persist(); err != nil {
		return n, fmt.Errorf("persist bolt: %w", err)
	}
	return n, nil
}

// Close releases the bolt file lock.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured bolt file path.
func (s *Store) Path() string { return s.path }
