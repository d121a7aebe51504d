/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

// Bucket names
var (
	loginsBucketName = []byte("logins") // Contains login attempts <unix_nano>-<id>=<event>
)

// LoginEvent is one login attempt seen by the dispatcher.
type LoginEvent struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Success   bool      `json:"success"`
	RequestID string    `json:"request_id"`
	Remote    string    `json:"remote,omitempty"`
	Time      time.Time `json:"time"`
}

// Database keeps the login audit trail across server restarts
type Database struct {
	db *bolt.DB
}

// NewDatabase creates a new or opens an existing database file
func NewDatabase(dbfile string) (*Database, error) {
	if err := ensureDirectory(filepath.Dir(dbfile)); err != nil {
		return nil, err
	}

	db, err := bolt.Open(dbfile, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %q", dbfile)
	}
	d := &Database{db: db}
	if err := d.initDatabase(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to initialize database")
	}
	return d, nil
}

func ensureDirectory(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0700)
	}

	return nil
}

func (d *Database) initDatabase() error {
	return d.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(loginsBucketName)
		return err
	})
}

func (d *Database) Close() error {
	return d.db.Close()
}

func eventKey(ev *LoginEvent) string {
	return fmt.Sprintf("%020d-%s", ev.Time.UnixNano(), ev.ID)
}

// RecordLogin appends ev. ID and Time are filled in when empty.
func (d *Database) RecordLogin(ctx context.Context, ev LoginEvent) error {
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	return d.db.Update(func(tx *bolt.Tx) error {
		return putObject(tx.Bucket(loginsBucketName), eventKey(&ev), &ev)
	})
}

// WalkLogins iterates login events oldest first and invokes cb on each
func (d *Database) WalkLogins(ctx context.Context, cb func(ev *LoginEvent) error) error {
	return d.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(loginsBucketName)
		return bucket.ForEach(func(key, value []byte) error {
			ev := &LoginEvent{}
			if err := json.Unmarshal(value, ev); err != nil {
				return errors.Wrapf(err, "failed to unmarshal %s", key)
			}

			return cb(ev)
		})
	})
}

// CleanupLogins deletes all login records
func (d *Database) CleanupLogins(ctx context.Context) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(loginsBucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(loginsBucketName)
		return err
	})
}

func putObject(bucket *bolt.Bucket, key string, obj interface{}) error {
	keyBytes := []byte(key)

	if bucket.Get(keyBytes) != nil {
		return errors.Wrapf(errdefs.ErrAlreadyExists, "object with key %q", key)
	}

	value, err := json.Marshal(obj)
	if err != nil {
		return errors.Wrapf(err, "failed to marshall object with key %q", key)
	}

	if err := bucket.Put(keyBytes, value); err != nil {
		return errors.Wrapf(err, "failed to insert object with key %q", key)
	}

	return nil
}
