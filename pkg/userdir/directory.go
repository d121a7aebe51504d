/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package userdir is an in-memory index of the user slot table, keyed by
// username. It is an open-addressing table with linear probing whose capacity
// equals the number of slots in the image.
package userdir

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
	"github.com/BSAI-24005/file-verse/pkg/omni"
)

var ErrDirectoryFull = errors.New("user directory is full")

type entry struct {
	username string
	user     omni.UserRecord
	used     bool
}

type Directory struct {
	mu      sync.RWMutex
	entries []entry
	count   int
}

func New(capacity int) *Directory {
	if capacity < 1 {
		capacity = 1
	}
	return &Directory{entries: make([]entry, capacity)}
}

// Load indexes every active slot of img.
func Load(img *omni.Image) (*Directory, error) {
	users, err := img.ReadUsers()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read user table")
	}
	d := New(len(users))
	for _, u := range users {
		if !u.Active {
			continue
		}
		if err := d.Insert(u.Username, u); err != nil {
			return nil, errors.Wrapf(err, "failed to index user %q", u.Username)
		}
	}
	return d, nil
}

func (d *Directory) hash(name string) int {
	sum := 0
	for i := 0; i < len(name); i++ {
		sum += int(name[i])
	}
	return sum % len(d.entries)
}

// Insert adds rec under name. Names are unique.
func (d *Directory) Insert(name string, rec omni.UserRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.find(name) >= 0 {
		return errors.Wrapf(errdefs.ErrAlreadyExists, "user %q", name)
	}
	h := d.hash(name)
	for i := 0; i < len(d.entries); i++ {
		idx := (h + i) % len(d.entries)
		if !d.entries[idx].used {
			d.entries[idx] = entry{username: name, user: rec, used: true}
			d.count++
			return nil
		}
	}
	return ErrDirectoryFull
}

func (d *Directory) find(name string) int {
	h := d.hash(name)
	for i := 0; i < len(d.entries); i++ {
		idx := (h + i) % len(d.entries)
		if d.entries[idx].used && d.entries[idx].username == name {
			return idx
		}
	}
	return -1
}

// Find returns a copy of the record stored under name.
func (d *Directory) Find(name string) (omni.UserRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx := d.find(name)
	if idx < 0 {
		return omni.UserRecord{}, false
	}
	return d.entries[idx].user, true
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

func (d *Directory) Cap() int {
	return len(d.entries)
}
