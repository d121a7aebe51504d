/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package dirtree

import (
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

// MaxChildren bounds the number of entries in a single directory.
const MaxChildren = 20

var ErrDirectoryFull = errors.New("directory is full")

type node struct {
	name     string
	isDir    bool
	parent   *node
	children []*node
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Entry is one listed child of a directory.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Tree is an in-memory directory hierarchy rooted at "/".
type Tree struct {
	mu   sync.RWMutex
	root *node
}

func New() *Tree {
	return &Tree{root: &node{name: "/", isDir: true}}
}

func split(p string) []string {
	p = path.Clean("/" + p)
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

func (t *Tree) lookup(p string) *node {
	n := t.root
	for _, part := range split(p) {
		if !n.isDir {
			return nil
		}
		if n = n.child(part); n == nil {
			return nil
		}
	}
	return n
}

func (t *Tree) add(p string, isDir bool) error {
	parts := split(p)
	if len(parts) == 0 {
		return errors.Wrap(errdefs.ErrAlreadyExists, "/")
	}
	parent := t.lookup(path.Join(append([]string{"/"}, parts[:len(parts)-1]...)...))
	if parent == nil || !parent.isDir {
		return errors.Wrapf(errdefs.ErrNotFound, "parent of %q", p)
	}
	name := parts[len(parts)-1]
	if parent.child(name) != nil {
		return errors.Wrapf(errdefs.ErrAlreadyExists, "%q", p)
	}
	if len(parent.children) >= MaxChildren {
		return errors.Wrapf(ErrDirectoryFull, "%q", p)
	}
	parent.children = append(parent.children, &node{name: name, isDir: isDir, parent: parent})
	return nil
}

// Mkdir creates a directory whose parent must already exist.
func (t *Tree) Mkdir(p string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(p, true)
}

// AddFile records a file entry whose parent directory must already exist.
func (t *Tree) AddFile(p string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.add(p, false)
}

func (t *Tree) Exists(p string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lookup(p) != nil
}

// List returns the children of directory p sorted by name.
func (t *Tree) List(p string) ([]Entry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.lookup(p)
	if n == nil {
		return nil, errors.Wrapf(errdefs.ErrNotFound, "%q", p)
	}
	if !n.isDir {
		return nil, errors.Errorf("%q is not a directory", p)
	}
	entries := make([]Entry, 0, len(n.children))
	for _, c := range n.children {
		entries = append(entries, Entry{Name: c.name, IsDir: c.isDir})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
