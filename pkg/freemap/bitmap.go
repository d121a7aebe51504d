/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package freemap tracks which data blocks of an image are in use.
//
// On disk the map is one byte per block (0 free, non-zero used). In memory it
// is packed into 64-bit words. A Bitmap is not safe for concurrent use.
package freemap

import (
	"math/bits"

	"github.com/pkg/errors"
)

const wordBits = 64

type Bitmap struct {
	words []uint64
	total int
	used  int
}

func New(blocks int) *Bitmap {
	if blocks < 0 {
		blocks = 0
	}
	return &Bitmap{
		words: make([]uint64, (blocks+wordBits-1)/wordBits),
		total: blocks,
	}
}

// FromBytes builds a bitmap from the on-disk representation.
func FromBytes(raw []byte) *Bitmap {
	b := New(len(raw))
	for i, v := range raw {
		if v != 0 {
			b.set(i)
		}
	}
	return b
}

// Bytes returns the on-disk representation.
func (b *Bitmap) Bytes() []byte {
	out := make([]byte, b.total)
	for i := range out {
		if b.IsUsed(i) {
			out[i] = 1
		}
	}
	return out
}

func (b *Bitmap) Len() int { return b.total }

func (b *Bitmap) IsUsed(idx int) bool {
	if idx < 0 || idx >= b.total {
		return false
	}
	return b.words[idx/wordBits]&(1<<(uint(idx)%wordBits)) != 0
}

func (b *Bitmap) set(idx int) {
	w := &b.words[idx/wordBits]
	mask := uint64(1) << (uint(idx) % wordBits)
	if *w&mask == 0 {
		*w |= mask
		b.used++
	}
}

// Allocate marks the first free block as used and returns its index.
func (b *Bitmap) Allocate() (int, error) {
	for wi, w := range b.words {
		if w == ^uint64(0) {
			continue
		}
		idx := wi*wordBits + bits.TrailingZeros64(^w)
		if idx >= b.total {
			break
		}
		b.set(idx)
		return idx, nil
	}
	return -1, errors.New("no free block")
}

// Free releases idx. Out of range indexes are ignored.
func (b *Bitmap) Free(idx int) {
	if !b.IsUsed(idx) {
		return
	}
	b.words[idx/wordBits] &^= 1 << (uint(idx) % wordBits)
	b.used--
}

func (b *Bitmap) FreeCount() int {
	return b.total - b.used
}

func (b *Bitmap) UsedCount() int {
	return b.used
}
