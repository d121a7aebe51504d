/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

func TestParseFlatObject(t *testing.T) {
	f, err := Parse(`{"cmd":"login","username":"admin", "password" : "7861","request_id":42}`)
	require.Nil(t, err)
	assert.Equal(t, Fields{
		"cmd":        "login",
		"username":   "admin",
		"password":   "7861",
		"request_id": "42",
	}, f)
}

func TestParseBareValues(t *testing.T) {
	f, err := Parse(`{ "cmd" : stats , "flag": true, "n": -1.5e3, "gone": null }`)
	require.Nil(t, err)
	assert.Equal(t, "stats", f.Get(KeyCmd, ""))
	assert.Equal(t, "true", f["flag"])
	assert.Equal(t, "-1.5e3", f["n"])
	_, ok := f["gone"]
	assert.False(t, ok)
}

func TestParseEscapes(t *testing.T) {
	f, err := Parse(`{"path":"/a\/b\"c\\d\n","u":"é😀"}`)
	require.Nil(t, err)
	assert.Equal(t, "/a/b\"c\\d\n", f["path"])
	assert.Equal(t, "é😀", f["u"])
}

func TestParseEmptyAndDuplicates(t *testing.T) {
	f, err := Parse(`{"session_id":"","cmd":"whoami","cmd":"stats"}`)
	require.Nil(t, err)
	assert.Equal(t, Fields{"cmd": "whoami"}, f)

	f, err = Parse(` {} `)
	require.Nil(t, err)
	assert.Len(t, f, 0)
}

func TestParseRejects(t *testing.T) {
	for _, msg := range []string{
		``,
		`cmd=stats`,
		`{"cmd":"stats"`,
		`{"cmd":}`,
		`{cmd:"stats"}`,
		`{"cmd":"stats",}`,
		`{"cmd":"stats"} trailing`,
		`{"a":{"b":"c"}}`,
		`{"a":[1,2]}`,
		`{"a":"unterminated}`,
		`{"a":"bad \q escape"}`,
		`{"a":"\u00"}`,
		`{"a":"nul\u0000"}`,
		"{\"a\":\"tab\tinside\"}",
	} {
		_, err := Parse(msg)
		assert.True(t, errdefs.IsProtocol(err), "%q should fail, got %v", msg, err)
	}
}

func TestParseKeepsFieldsBeforeError(t *testing.T) {
	f, err := Parse(`{"request_id":"77","cmd":"stats","extra":[1]}`)
	assert.True(t, errdefs.IsProtocol(err))
	assert.Equal(t, "77", f.Get(KeyRequestID, DefaultRequestID))
	assert.Equal(t, "stats", f.Get(KeyCmd, ""))
}

func TestFieldsGetDefault(t *testing.T) {
	f := Fields{}
	assert.Equal(t, "0", f.Get(KeyRequestID, DefaultRequestID))
	assert.Equal(t, "/", f.Get(KeyPath, "/"))
}
