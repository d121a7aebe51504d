/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package store

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// NewID returns a short url-safe random id.
func NewID() string {
	id := uuid.New()
	b := [16]byte(id)
	return base64.RawURLEncoding.EncodeToString(b[:])
}
