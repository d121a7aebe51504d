/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package errdefs

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

var (
	ErrFormatInvalid   = errors.New("invalid image format")
	ErrInvalidGeometry = errors.New("invalid image geometry")
	ErrAuthFailure     = errors.New("invalid credentials")
	ErrProtocol        = errors.New("malformed message")
	ErrNotImplemented  = errors.New("not implemented")
	ErrClosed          = errors.New("channel closed")
	ErrNotFound        = errors.New("object not found")
	ErrAlreadyExists   = errors.New("object already exists")
)

// IOError reports that the image file could not be created, opened, read or written.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Cause keeps pkg/errors.Cause walking into the underlying os error.
func (e *IOError) Cause() error { return e.Err }

func NewIOError(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}

// IsIOFailure returns true if the error chain contains an IOError
func IsIOFailure(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}

func IsFormatInvalid(err error) bool {
	return errors.Is(err, ErrFormatInvalid)
}

func IsInvalidGeometry(err error) bool {
	return errors.Is(err, ErrInvalidGeometry)
}

func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuthFailure)
}

func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}

func IsNotImplemented(err error) bool {
	return errors.Is(err, ErrNotImplemented)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsAlreadyExists returns true if the error is due to already exists
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConnectionClosed returns true if error is due to connection closed
// this is used when the server is closed by sig term
func IsConnectionClosed(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed) ||
			opErr.Err.Error() == "use of closed network connection"
	}
	return errors.Is(err, net.ErrClosed)
}
