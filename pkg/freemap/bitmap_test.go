/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package freemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateFirstFit(t *testing.T) {
	b := New(130)
	for i := 0; i < 130; i++ {
		idx, err := b.Allocate()
		require.Nil(t, err)
		assert.Equal(t, i, idx)
	}
	_, err := b.Allocate()
	assert.NotNil(t, err)
	assert.Equal(t, 0, b.FreeCount())

	b.Free(65)
	b.Free(3)
	assert.Equal(t, 2, b.FreeCount())
	idx, err := b.Allocate()
	require.Nil(t, err)
	assert.Equal(t, 3, idx)
	idx, err = b.Allocate()
	require.Nil(t, err)
	assert.Equal(t, 65, idx)
}

func TestFreeOutOfRange(t *testing.T) {
	b := New(4)
	b.Free(-1)
	b.Free(4)
	b.Free(2)
	assert.Equal(t, 4, b.FreeCount())
	assert.False(t, b.IsUsed(10))
}

func TestBytesRoundTrip(t *testing.T) {
	raw := []byte{0, 1, 0, 0, 7, 0, 0, 0, 0, 1}
	b := FromBytes(raw)
	assert.Equal(t, 10, b.Len())
	assert.Equal(t, 3, b.UsedCount())
	assert.Equal(t, []byte{0, 1, 0, 0, 1, 0, 0, 0, 0, 1}, b.Bytes())
}

func TestEmptyBitmap(t *testing.T) {
	b := New(0)
	_, err := b.Allocate()
	assert.NotNil(t, err)
	assert.Equal(t, 0, b.FreeCount())
}
