/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package signals

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	setupOnce       sync.Once
	closeOnce       sync.Once
	stop            = make(chan struct{})
	shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
)

// SetupSignalHandler returns a channel closed on the first SIGINT or SIGTERM.
// A second signal exits the process without waiting for the drain.
func SetupSignalHandler() (stopCh <-chan struct{}) {
	setupOnce.Do(func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, shutdownSignals...)
		go func() {
			<-c
			RequestShutdown()
			<-c
			os.Exit(1)
		}()
	})
	return stop
}

// RequestShutdown closes the stop channel as if a signal had arrived.
func RequestShutdown() {
	closeOnce.Do(func() { close(stop) })
}
