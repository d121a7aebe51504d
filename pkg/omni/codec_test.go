/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package omni

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

func sampleHeader() *Header {
	h := &Header{
		FormatVersion:          0xdeadbeef,
		TotalSize:              0x0102030405060708,
		HeaderSize:             512,
		BlockSize:              8192,
		SubmissionID:           "BSAI-24005",
		SubmissionDate:         "2025-11-13",
		ConfigHash:             strings.Repeat("ab", 31) + "c",
		ConfigTimestamp:        1731456000,
		UserTableOffset:        512,
		MaxUsers:               77,
		FileStateStorageOffset: 0x11223344,
		ChangeLogOffset:        0x55667788,
	}
	copy(h.Magic[:], Magic)
	for i := range h.Reserved {
		h.Reserved[i] = byte(i * 7)
	}
	return h
}

func TestHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	raw, err := EncodeHeader(h)
	require.Nil(t, err)
	require.Len(t, raw, HeaderSize)

	decoded, err := DecodeHeader(raw)
	require.Nil(t, err)
	assert.Equal(t, h, decoded)

	var viaMethods Header
	raw2, err := h.MarshalBinary()
	require.Nil(t, err)
	require.Nil(t, viaMethods.UnmarshalBinary(raw2))
	assert.Equal(t, *h, viaMethods)
}

func TestHeaderFieldOffsets(t *testing.T) {
	raw, err := EncodeHeader(sampleHeader())
	require.Nil(t, err)

	assert.Equal(t, Magic, string(raw[0:8]))
	assert.Equal(t, uint32(0xdeadbeef), binary.LittleEndian.Uint32(raw[8:12]))
	assert.Equal(t, []byte{0, 0, 0, 0}, raw[12:16])
	assert.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(raw[16:24]))
	assert.Equal(t, uint64(512), binary.LittleEndian.Uint64(raw[24:32]))
	assert.Equal(t, uint64(8192), binary.LittleEndian.Uint64(raw[32:40]))
	assert.Equal(t, "BSAI-24005", strings.TrimRight(string(raw[40:72]), "\x00"))
	assert.Equal(t, "2025-11-13", strings.TrimRight(string(raw[72:88]), "\x00"))
	assert.Equal(t, uint64(1731456000), binary.LittleEndian.Uint64(raw[152:160]))
	assert.Equal(t, uint32(512), binary.LittleEndian.Uint32(raw[160:164]))
	assert.Equal(t, uint32(77), binary.LittleEndian.Uint32(raw[164:168]))
	assert.Equal(t, uint32(0x11223344), binary.LittleEndian.Uint32(raw[168:172]))
	assert.Equal(t, uint32(0x55667788), binary.LittleEndian.Uint32(raw[172:176]))
}

func TestHeaderTextTooLong(t *testing.T) {
	h := sampleHeader()
	h.SubmissionDate = "2025-11-13T00:00:00Z"
	_, err := EncodeHeader(h)
	assert.NotNil(t, err)

	h = sampleHeader()
	h.ConfigHash = strings.Repeat("f", ConfigHashSize)
	_, err = EncodeHeader(h)
	assert.NotNil(t, err)
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.True(t, errdefs.IsFormatInvalid(err))
}

func TestUserRoundTrip(t *testing.T) {
	u := &UserRecord{
		Username:    "alice",
		Credential:  "s3cret",
		Role:        RoleNormal,
		CreatedTime: 1700000000,
		LastLogin:   1700000500,
		Active:      true,
	}
	raw, err := EncodeUser(u)
	require.Nil(t, err)
	require.Len(t, raw, UserRecordSize)
	assert.Equal(t, byte(1), raw[120])
	assert.Equal(t, uint64(1700000000), binary.LittleEndian.Uint64(raw[104:112]))

	decoded, err := DecodeUser(raw)
	require.Nil(t, err)
	assert.Equal(t, u, decoded)
}

func TestInactiveUserEncodesAsZeros(t *testing.T) {
	raw, err := EncodeUser(&UserRecord{Username: "ghost", Credential: "x", Role: RoleAdmin})
	require.Nil(t, err)
	assert.Equal(t, make([]byte, UserRecordSize), raw)
}

func TestUserFieldLimits(t *testing.T) {
	_, err := EncodeUser(&UserRecord{Username: strings.Repeat("u", UsernameSize), Active: true})
	assert.NotNil(t, err)
	_, err = EncodeUser(&UserRecord{Username: "ok", Credential: strings.Repeat("p", CredentialSize-1), Active: true})
	assert.Nil(t, err)
	_, err = EncodeUser(&UserRecord{Username: "nul\x00", Active: true})
	assert.NotNil(t, err)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "admin", RoleAdmin.String())
	assert.Equal(t, "normal", RoleNormal.String())
	assert.Equal(t, "role(9)", Role(9).String())
}
