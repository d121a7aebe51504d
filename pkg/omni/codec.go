/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package omni

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
)

// fixedBuf writes and reads little-endian fields at absolute offsets of a
// fixed-size record.
type fixedBuf []byte

func (b fixedBuf) putU8(off int, v uint8)   { b[off] = v }
func (b fixedBuf) putU32(off int, v uint32) { binary.LittleEndian.PutUint32(b[off:off+4], v) }
func (b fixedBuf) putU64(off int, v uint64) { binary.LittleEndian.PutUint64(b[off:off+8], v) }

func (b fixedBuf) u8(off int) uint8   { return b[off] }
func (b fixedBuf) u32(off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }
func (b fixedBuf) u64(off int) uint64 { return binary.LittleEndian.Uint64(b[off : off+8]) }

// putText stores s NUL-terminated in a width-byte field. One byte is always
// left for the terminator.
func (b fixedBuf) putText(off, width int, name, s string) error {
	if len(s) > width-1 {
		return errors.Errorf("%s is %d bytes, at most %d fit", name, len(s), width-1)
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return errors.Errorf("%s contains a NUL byte", name)
	}
	copy(b[off:off+width], s)
	return nil
}

func (b fixedBuf) text(off, width int) string {
	field := b[off : off+width]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// EncodeHeader serializes h into exactly HeaderSize bytes.
func EncodeHeader(h *Header) ([]byte, error) {
	b := fixedBuf(make([]byte, HeaderSize))
	copy(b[offMagic:offMagic+len(h.Magic)], h.Magic[:])
	b.putU32(offFormatVersion, h.FormatVersion)
	b.putU64(offTotalSize, h.TotalSize)
	b.putU64(offHeaderSize, h.HeaderSize)
	b.putU64(offBlockSize, h.BlockSize)
	if err := b.putText(offSubmissionID, SubmissionIDSize, "submission id", h.SubmissionID); err != nil {
		return nil, err
	}
	if err := b.putText(offSubmissionDate, SubmissionDateSize, "submission date", h.SubmissionDate); err != nil {
		return nil, err
	}
	if err := b.putText(offConfigHash, ConfigHashSize, "config hash", h.ConfigHash); err != nil {
		return nil, err
	}
	b.putU64(offConfigTimestamp, h.ConfigTimestamp)
	b.putU32(offUserTableOffset, h.UserTableOffset)
	b.putU32(offMaxUsers, h.MaxUsers)
	b.putU32(offFileStateOffset, h.FileStateStorageOffset)
	b.putU32(offChangeLogOffset, h.ChangeLogOffset)
	copy(b[offHeaderReserved:], h.Reserved[:])
	return b, nil
}

// DecodeHeader parses the first HeaderSize bytes of raw. The magic is not
// checked here; see Header.HasValidMagic.
func DecodeHeader(raw []byte) (*Header, error) {
	if len(raw) < HeaderSize {
		return nil, errors.Wrapf(errdefs.ErrFormatInvalid, "header needs %d bytes, got %d", HeaderSize, len(raw))
	}
	b := fixedBuf(raw[:HeaderSize])
	h := &Header{
		FormatVersion:          b.u32(offFormatVersion),
		TotalSize:              b.u64(offTotalSize),
		HeaderSize:             b.u64(offHeaderSize),
		BlockSize:              b.u64(offBlockSize),
		SubmissionID:           b.text(offSubmissionID, SubmissionIDSize),
		SubmissionDate:         b.text(offSubmissionDate, SubmissionDateSize),
		ConfigHash:             b.text(offConfigHash, ConfigHashSize),
		ConfigTimestamp:        b.u64(offConfigTimestamp),
		UserTableOffset:        b.u32(offUserTableOffset),
		MaxUsers:               b.u32(offMaxUsers),
		FileStateStorageOffset: b.u32(offFileStateOffset),
		ChangeLogOffset:        b.u32(offChangeLogOffset),
	}
	copy(h.Magic[:], b[offMagic:offMagic+len(h.Magic)])
	copy(h.Reserved[:], b[offHeaderReserved:])
	return h, nil
}

func (h *Header) MarshalBinary() ([]byte, error) {
	return EncodeHeader(h)
}

func (h *Header) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeHeader(data)
	if err != nil {
		return err
	}
	*h = *decoded
	return nil
}

// EncodeUser serializes u into exactly UserRecordSize bytes. Inactive
// records always encode as zeros so that free slots stay fully zeroed.
func EncodeUser(u *UserRecord) ([]byte, error) {
	b := fixedBuf(make([]byte, UserRecordSize))
	if !u.Active {
		return b, nil
	}
	if err := b.putText(offUsername, UsernameSize, "username", u.Username); err != nil {
		return nil, err
	}
	if err := b.putText(offCredential, CredentialSize, "credential", u.Credential); err != nil {
		return nil, err
	}
	b.putU32(offRole, uint32(u.Role))
	b.putU64(offCreatedTime, u.CreatedTime)
	b.putU64(offLastLogin, u.LastLogin)
	b.putU8(offActive, 1)
	return b, nil
}

func DecodeUser(raw []byte) (*UserRecord, error) {
	if len(raw) < UserRecordSize {
		return nil, errors.Wrapf(errdefs.ErrFormatInvalid, "user record needs %d bytes, got %d", UserRecordSize, len(raw))
	}
	b := fixedBuf(raw[:UserRecordSize])
	return &UserRecord{
		Username:    b.text(offUsername, UsernameSize),
		Credential:  b.text(offCredential, CredentialSize),
		Role:        Role(b.u32(offRole)),
		CreatedTime: b.u64(offCreatedTime),
		LastLogin:   b.u64(offLastLogin),
		Active:      b.u8(offActive) != 0,
	}, nil
}
