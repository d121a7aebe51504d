/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package logging

import (
	"context"
	"os"

	"github.com/containerd/log"
	"github.com/sirupsen/logrus"
)

// SetUp switches the global logger to JSON lines at logLevel.
func SetUp(logLevel string) error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: log.RFC3339NanoFixed,
	})
	return nil
}

// WithContext returns a root context whose logger tags every entry with the
// command being run and the process id.
func WithContext(command string) context.Context {
	entry := log.L.WithFields(log.Fields{
		"command": command,
		"pid":     os.Getpid(),
	})
	return log.WithLogger(context.Background(), entry)
}
