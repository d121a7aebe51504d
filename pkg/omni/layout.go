/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package omni reads and writes OMNI image files: a 512-byte header, a fixed
// table of user slots and a free-space map covering the rest of the image.
//
// All multi-byte integers are little-endian. Field offsets are fixed and
// documented next to each constant below; they match images produced by
// earlier OMNIFS01 tooling byte for byte.
package omni

import (
	"fmt"
)

const (
	Magic         = "OMNIFS01"
	FormatVersion = uint32(0x00010000)

	HeaderSize     = 512
	UserRecordSize = 144

	DefaultTotalSize = uint64(104857600)
	DefaultBlockSize = uint64(4096)
	DefaultMaxUsers  = uint32(50)
)

// Header field offsets.
const (
	offMagic           = 0   // [8]byte
	offFormatVersion   = 8   // u32, followed by 4 pad bytes
	offTotalSize       = 16  // u64
	offHeaderSize      = 24  // u64
	offBlockSize       = 32  // u64
	offSubmissionID    = 40  // [32]byte
	offSubmissionDate  = 72  // [16]byte
	offConfigHash      = 88  // [64]byte
	offConfigTimestamp = 152 // u64
	offUserTableOffset = 160 // u32
	offMaxUsers        = 164 // u32
	offFileStateOffset = 168 // u32
	offChangeLogOffset = 172 // u32
	offHeaderReserved  = 176 // reserved up to HeaderSize

	HeaderReservedSize = HeaderSize - offHeaderReserved
	SubmissionIDSize   = 32
	SubmissionDateSize = 16
	ConfigHashSize     = 64
)

// User record field offsets.
const (
	offUsername    = 0   // [32]byte
	offCredential  = 32  // [64]byte
	offRole        = 96  // u32, followed by 4 pad bytes
	offCreatedTime = 104 // u64
	offLastLogin   = 112 // u64
	offActive      = 120 // u8, followed by 23 reserved bytes

	UsernameSize   = 32
	CredentialSize = 64
)

type Role uint32

const (
	RoleNormal Role = 0
	RoleAdmin  Role = 1
)

func (r Role) String() string {
	switch r {
	case RoleNormal:
		return "normal"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint32(r))
	}
}

// Header is the superblock at offset 0 of every image. It is written once by
// Format and treated as read-only afterwards.
type Header struct {
	Magic         [8]byte
	FormatVersion uint32
	TotalSize     uint64
	HeaderSize    uint64
	BlockSize     uint64

	// Carried for compatibility, never interpreted.
	SubmissionID    string
	SubmissionDate  string
	ConfigHash      string
	ConfigTimestamp uint64

	UserTableOffset        uint32
	MaxUsers               uint32
	FileStateStorageOffset uint32
	ChangeLogOffset        uint32

	Reserved [HeaderReservedSize]byte
}

func (h *Header) HasValidMagic() bool {
	return string(h.Magic[:]) == Magic
}

// UserTableSize is the number of bytes covered by the slot table.
func (h *Header) UserTableSize() uint64 {
	return uint64(h.MaxUsers) * UserRecordSize
}

// FreeMapOffset is where the free-space map starts, right after the slot table.
func (h *Header) FreeMapOffset() uint64 {
	return uint64(h.UserTableOffset) + h.UserTableSize()
}

// BlockCount is the number of data blocks tracked by the free-space map.
func (h *Header) BlockCount() uint64 {
	if h.BlockSize == 0 {
		return 0
	}
	used := h.HeaderSize + h.UserTableSize()
	if used >= h.TotalSize {
		return 0
	}
	return (h.TotalSize - used) / h.BlockSize
}

// UserRecord is one slot of the user table. Credentials are stored as given.
type UserRecord struct {
	Username    string
	Credential  string
	Role        Role
	CreatedTime uint64
	LastLogin   uint64
	Active      bool
}

func (u UserRecord) IsAdmin() bool {
	return u.Role == RoleAdmin
}
