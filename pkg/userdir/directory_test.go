/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package userdir

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
	"github.com/BSAI-24005/file-verse/pkg/omni"
)

func TestInsertFind(t *testing.T) {
	d := New(4)
	alice := omni.UserRecord{Username: "alice", Credential: "a", Active: true}
	require.Nil(t, d.Insert("alice", alice))

	got, ok := d.Find("alice")
	assert.True(t, ok)
	assert.Equal(t, alice, got)

	_, ok = d.Find("bob")
	assert.False(t, ok)
	assert.Equal(t, 1, d.Len())
}

func TestInsertDuplicate(t *testing.T) {
	d := New(4)
	require.Nil(t, d.Insert("alice", omni.UserRecord{Username: "alice"}))
	err := d.Insert("alice", omni.UserRecord{Username: "alice"})
	assert.True(t, errdefs.IsAlreadyExists(err))
}

func TestCollisionsProbe(t *testing.T) {
	// "ab" and "ba" hash to the same bucket.
	d := New(3)
	require.Nil(t, d.Insert("ab", omni.UserRecord{Credential: "1"}))
	require.Nil(t, d.Insert("ba", omni.UserRecord{Credential: "2"}))
	require.Nil(t, d.Insert("c", omni.UserRecord{Credential: "3"}))
	assert.Equal(t, ErrDirectoryFull, d.Insert("d", omni.UserRecord{}))

	for name, cred := range map[string]string{"ab": "1", "ba": "2", "c": "3"} {
		got, ok := d.Find(name)
		require.True(t, ok, name)
		assert.Equal(t, cred, got.Credential)
	}
}

func TestLoadFromImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.omni")
	opts := omni.DefaultFormatOptions()
	opts.MaxUsers = 5
	_, err := omni.Format(path, opts)
	require.Nil(t, err)
	img, _, err := omni.OpenAndValidate(path)
	require.Nil(t, err)
	require.Nil(t, img.WriteUser(3, &omni.UserRecord{Username: "carol", Credential: "c", Active: true}))

	d, err := Load(img)
	require.Nil(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, 5, d.Cap())

	admin, ok := d.Find("admin")
	require.True(t, ok)
	assert.True(t, admin.IsAdmin())
	carol, ok := d.Find("carol")
	require.True(t, ok)
	assert.Equal(t, omni.RoleNormal, carol.Role)
}
