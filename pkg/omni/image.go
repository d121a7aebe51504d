/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package omni

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
	"github.com/BSAI-24005/file-verse/pkg/freemap"
)

// formatChunk bounds the buffer used to zero-fill the free-space map.
const formatChunk = 64 * 1024

type FormatOptions struct {
	TotalSize uint64
	BlockSize uint64
	MaxUsers  uint32

	AdminUsername string
	AdminPassword string

	SubmissionID    string
	SubmissionDate  string
	ConfigHash      string
	ConfigTimestamp time.Time

	// Now stamps the administrator's created_time. Defaults to time.Now.
	Now func() time.Time
}

func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		TotalSize:     DefaultTotalSize,
		BlockSize:     DefaultBlockSize,
		MaxUsers:      DefaultMaxUsers,
		AdminUsername: "admin",
		AdminPassword: "7861",
	}
}

// NewHeader lays out a header for opts and checks that the header, the slot
// table and the free-space map fit inside TotalSize.
func NewHeader(opts FormatOptions) (*Header, error) {
	if opts.BlockSize == 0 {
		return nil, errors.Wrap(errdefs.ErrInvalidGeometry, "block size must be positive")
	}
	if opts.MaxUsers == 0 {
		return nil, errors.Wrap(errdefs.ErrInvalidGeometry, "at least one user slot is required")
	}
	h := &Header{
		FormatVersion:   FormatVersion,
		TotalSize:       opts.TotalSize,
		HeaderSize:      HeaderSize,
		BlockSize:       opts.BlockSize,
		SubmissionID:    opts.SubmissionID,
		SubmissionDate:  opts.SubmissionDate,
		ConfigHash:      opts.ConfigHash,
		UserTableOffset: HeaderSize,
		MaxUsers:        opts.MaxUsers,
	}
	copy(h.Magic[:], Magic)
	if !opts.ConfigTimestamp.IsZero() {
		h.ConfigTimestamp = uint64(opts.ConfigTimestamp.Unix())
	}

	fixed := h.HeaderSize + h.UserTableSize()
	if fixed+h.BlockCount() > h.TotalSize || fixed >= h.TotalSize {
		return nil, errors.Wrapf(errdefs.ErrInvalidGeometry,
			"header %d + user table %d + free map %d exceed total size %d",
			h.HeaderSize, h.UserTableSize(), h.BlockCount(), h.TotalSize)
	}
	if h.FreeMapOffset() > uint64(^uint32(0)) {
		return nil, errors.Wrap(errdefs.ErrInvalidGeometry, "user table does not fit 32-bit offsets")
	}
	return h, nil
}

// Format creates or truncates the image at path: header, seeded
// administrator in slot 0, zeroed remaining slots, zeroed free-space map, and
// a file extended to exactly TotalSize bytes.
func Format(path string, opts FormatOptions) (*Header, error) {
	h, headerRaw, adminRaw, err := encodeImage(opts)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errdefs.NewIOError("create", path, err)
	}
	if err := writeImage(f, h, headerRaw, adminRaw); err != nil {
		f.Close()
		return nil, errdefs.NewIOError("format", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, errdefs.NewIOError("close", path, err)
	}
	return h, nil
}

// CheckFormatOptions reports whether Format would accept opts, without
// touching the file system.
func CheckFormatOptions(opts FormatOptions) error {
	_, _, _, err := encodeImage(opts)
	return err
}

func encodeImage(opts FormatOptions) (*Header, []byte, []byte, error) {
	if opts.AdminUsername == "" || opts.AdminPassword == "" {
		return nil, nil, nil, errors.New("administrator username and password are required")
	}
	h, err := NewHeader(opts)
	if err != nil {
		return nil, nil, nil, err
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	admin := &UserRecord{
		Username:    opts.AdminUsername,
		Credential:  opts.AdminPassword,
		Role:        RoleAdmin,
		CreatedTime: uint64(now().Unix()),
		Active:      true,
	}
	adminRaw, err := EncodeUser(admin)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to encode administrator record")
	}
	headerRaw, err := EncodeHeader(h)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to encode header")
	}
	return h, headerRaw, adminRaw, nil
}

func writeImage(f *os.File, h *Header, headerRaw, adminRaw []byte) error {
	if _, err := f.Write(headerRaw); err != nil {
		return err
	}
	if _, err := f.Seek(int64(h.UserTableOffset), io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(adminRaw); err != nil {
		return err
	}
	empty := make([]byte, UserRecordSize)
	for i := uint32(1); i < h.MaxUsers; i++ {
		if _, err := f.Write(empty); err != nil {
			return err
		}
	}
	zero := make([]byte, formatChunk)
	for left := h.BlockCount(); left > 0; {
		n := uint64(len(zero))
		if left < n {
			n = left
		}
		if _, err := f.Write(zero[:n]); err != nil {
			return err
		}
		left -= n
	}
	if err := f.Truncate(int64(h.TotalSize)); err != nil {
		return err
	}
	return f.Sync()
}

// Image is a handle on an image path. It never keeps the file open: every
// operation opens, reads or writes, and closes the file on its own.
type Image struct {
	path string
}

// OpenAndValidate reads the header of the image at path and fails with
// ErrFormatInvalid when the magic does not match or the geometry does not fit
// the file.
func OpenAndValidate(path string) (*Image, *Header, error) {
	img := &Image{path: path}
	h, err := img.Header()
	if err != nil {
		return nil, nil, err
	}
	return img, h, nil
}

func (img *Image) Path() string { return img.path }

func (img *Image) open(flag int) (*os.File, error) {
	f, err := os.OpenFile(img.path, flag, 0)
	if err != nil {
		return nil, errdefs.NewIOError("open", img.path, err)
	}
	return f, nil
}

func readHeader(f *os.File, path string) (*Header, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(errdefs.ErrFormatInvalid, "%s is shorter than a header", path)
		}
		return nil, errdefs.NewIOError("read", path, err)
	}
	h, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}
	if !h.HasValidMagic() {
		return nil, errors.Wrapf(errdefs.ErrFormatInvalid, "bad magic %q in %s", h.Magic[:], path)
	}
	info, err := f.Stat()
	if err != nil {
		return nil, errdefs.NewIOError("stat", path, err)
	}
	if err := checkGeometry(h, uint64(info.Size())); err != nil {
		return nil, errors.Wrapf(err, "corrupt header in %s", path)
	}
	return h, nil
}

// checkGeometry bounds every region the header describes by the real file
// size, so no read is sized from an unchecked field.
func checkGeometry(h *Header, fileSize uint64) error {
	switch {
	case h.HeaderSize != HeaderSize:
		return errors.Wrapf(errdefs.ErrFormatInvalid, "header size %d, want %d", h.HeaderSize, HeaderSize)
	case h.BlockSize == 0:
		return errors.Wrap(errdefs.ErrFormatInvalid, "block size is zero")
	case uint64(h.UserTableOffset) < HeaderSize:
		return errors.Wrapf(errdefs.ErrFormatInvalid, "user table offset %d overlaps the header", h.UserTableOffset)
	case h.TotalSize > fileSize:
		return errors.Wrapf(errdefs.ErrFormatInvalid, "total size %d exceeds file size %d", h.TotalSize, fileSize)
	case h.FreeMapOffset()+h.BlockCount() > h.TotalSize:
		return errors.Wrapf(errdefs.ErrFormatInvalid,
			"user table of %d slots and free map of %d blocks exceed total size %d",
			h.MaxUsers, h.BlockCount(), h.TotalSize)
	}
	return nil
}

// Header reads and validates the header.
func (img *Image) Header() (*Header, error) {
	f, err := img.open(os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readHeader(f, img.path)
}

// ReadUsers returns every slot of the user table, active or not.
func (img *Image) ReadUsers() ([]UserRecord, error) {
	f, err := img.open(os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := readHeader(f, img.path)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, h.UserTableSize())
	if _, err := f.ReadAt(raw, int64(h.UserTableOffset)); err != nil {
		return nil, errdefs.NewIOError("read user table", img.path, err)
	}
	users := make([]UserRecord, 0, h.MaxUsers)
	for i := uint32(0); i < h.MaxUsers; i++ {
		u, err := DecodeUser(raw[uint64(i)*UserRecordSize:])
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, nil
}

// WriteUser stores u in slot. Inactive records are written as zeros.
func (img *Image) WriteUser(slot int, u *UserRecord) error {
	raw, err := EncodeUser(u)
	if err != nil {
		return err
	}
	f, err := img.open(os.O_RDWR)
	if err != nil {
		return err
	}
	defer f.Close()
	h, err := readHeader(f, img.path)
	if err != nil {
		return err
	}
	if slot < 0 || uint32(slot) >= h.MaxUsers {
		return errors.Errorf("slot %d out of range [0, %d)", slot, h.MaxUsers)
	}
	off := int64(h.UserTableOffset) + int64(slot)*UserRecordSize
	if _, err := f.WriteAt(raw, off); err != nil {
		return errdefs.NewIOError("write user", img.path, err)
	}
	return nil
}

// Authenticate scans the slot table from slot 0. The first active slot whose
// username matches decides the outcome.
func (img *Image) Authenticate(username, password string) error {
	f, err := img.open(os.O_RDONLY)
	if err != nil {
		return err
	}
	defer f.Close()
	h, err := readHeader(f, img.path)
	if err != nil {
		return err
	}
	if _, err := f.Seek(int64(h.UserTableOffset), io.SeekStart); err != nil {
		return errdefs.NewIOError("seek", img.path, err)
	}
	raw := make([]byte, UserRecordSize)
	for i := uint32(0); i < h.MaxUsers; i++ {
		if _, err := io.ReadFull(f, raw); err != nil {
			break
		}
		u, err := DecodeUser(raw)
		if err != nil {
			return err
		}
		if !u.Active || u.Username != username {
			continue
		}
		if u.Credential == password {
			return nil
		}
		return errors.Wrapf(errdefs.ErrAuthFailure, "wrong password for %q", username)
	}
	return errors.Wrapf(errdefs.ErrAuthFailure, "no active user %q", username)
}

// VerifyCredentials reports whether username/password match an active slot.
func (img *Image) VerifyCredentials(username, password string) bool {
	return img.Authenticate(username, password) == nil
}

// ReadFreeMap loads the persisted free-space map.
func (img *Image) ReadFreeMap() (*freemap.Bitmap, error) {
	f, err := img.open(os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := readHeader(f, img.path)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, h.BlockCount())
	if _, err := f.ReadAt(raw, int64(h.FreeMapOffset())); err != nil {
		return nil, errdefs.NewIOError("read free map", img.path, err)
	}
	return freemap.FromBytes(raw), nil
}

// Stats summarizes the image from its header alone.
type Stats struct {
	TotalSize        uint64
	UsedSpace        uint64
	FreeSpace        uint64
	TotalFiles       uint64
	TotalDirectories uint64
	TotalUsers       uint64
	ActiveSessions   uint64
	Fragmentation    float64
}

// Stats reads the header only. Allocations are not tracked yet, so UsedSpace
// is always 0 and FreeSpace is everything past the header.
func (img *Image) Stats() (*Stats, error) {
	h, err := img.Header()
	if err != nil {
		return nil, err
	}
	free := uint64(0)
	if h.TotalSize > h.HeaderSize {
		free = h.TotalSize - h.HeaderSize
	}
	return &Stats{
		TotalSize:  h.TotalSize,
		UsedSpace:  0,
		FreeSpace:  free,
		TotalUsers: uint64(h.MaxUsers),
	}, nil
}
