/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"net"

	"github.com/pkg/errors"
)

// DefaultBindAddress sets the default bind address for the metrics
// listener.
var DefaultBindAddress = ":9110"

// NewListener creates a new TCP listener bound to the given address.
func NewListener(addr string) (net.Listener, error) {
	if addr == "" {
		addr = DefaultBindAddress
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "error listening on %s", addr)
	}
	return ln, nil
}
