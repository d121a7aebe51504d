/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package server

import (
	"context"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/BSAI-24005/file-verse/config"
	"github.com/BSAI-24005/file-verse/pkg/dirtree"
	"github.com/BSAI-24005/file-verse/pkg/dispatcher"
	metrics "github.com/BSAI-24005/file-verse/pkg/metric"
	"github.com/BSAI-24005/file-verse/pkg/omni"
	"github.com/BSAI-24005/file-verse/pkg/queue"
	"github.com/BSAI-24005/file-verse/pkg/server"
	"github.com/BSAI-24005/file-verse/pkg/store"
	"github.com/BSAI-24005/file-verse/pkg/userdir"
	"github.com/BSAI-24005/file-verse/pkg/utils/signals"
)

// Start serves cfg until SIGINT or SIGTERM.
func Start(ctx context.Context, cfg config.Config) error {
	return Run(ctx, cfg, signals.SetupSignalHandler(), nil)
}

// Format writes a fresh image as described by cfg.
func Format(ctx context.Context, cfg config.Config) (*omni.Header, error) {
	h, err := omni.Format(cfg.ImagePath, cfg.FormatOptions())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to format image %s", cfg.ImagePath)
	}
	log.G(ctx).WithFields(log.Fields{
		"image":     cfg.ImagePath,
		"size":      h.TotalSize,
		"blocks":    h.BlockCount(),
		"max_users": h.MaxUsers,
	}).Info("image formatted")
	return h, nil
}

// Run opens the image, then serves both transports, the dispatcher and the
// optional metrics endpoint until stop is closed. ready, when not nil,
// receives the bound server once the listeners are up. Listeners stop first;
// the request channel is then closed and drained before Run returns.
func Run(ctx context.Context, cfg config.Config, stop <-chan struct{}, ready chan<- *server.Server) error {
	if cfg.FormatOnStart {
		if _, err := Format(ctx, cfg); err != nil {
			return err
		}
	}
	img, h, err := omni.OpenAndValidate(cfg.ImagePath)
	if err != nil {
		return errors.Wrapf(err, "failed to open image %s", cfg.ImagePath)
	}
	users, err := userdir.Load(img)
	if err != nil {
		return errors.Wrap(err, "failed to load user table")
	}
	log.G(ctx).WithFields(log.Fields{
		"image":   cfg.ImagePath,
		"version": h.FormatVersion,
		"users":   users.Len(),
	}).Info("image opened")

	dopts := []dispatcher.Opt{dispatcher.WithDirTree(dirtree.New())}
	if cfg.AuditDBPath != "" {
		db, err := store.NewDatabase(cfg.AuditDBPath)
		if err != nil {
			return errors.Wrap(err, "failed to open audit database")
		}
		defer db.Close()
		dopts = append(dopts, dispatcher.WithLoginRecorder(db))
	}
	d, err := dispatcher.New(img, dopts...)
	if err != nil {
		return errors.Wrap(err, "failed to create dispatcher")
	}

	ch := queue.NewChannel(cfg.QueueCapacity, queue.WithDepthObserver(func(depth int) {
		metrics.QueueDepth.Set(float64(depth))
	}))
	srv, err := server.New(ch,
		server.WithLineAddress(cfg.LineAddress),
		server.WithHTTPAddress(cfg.HTTPAddress),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	var ms *metrics.Server
	if cfg.EnableMetrics {
		if ms, err = metrics.NewServer(ctx, metrics.WithAddress(cfg.MetricsAddress)); err != nil {
			if cerr := srv.Close(); cerr != nil {
				log.G(ctx).WithError(cerr).Warn("failed to release listeners")
			}
			return errors.Wrap(err, "failed to create metrics server")
		}
		log.G(ctx).Infof("metrics listening on %s", ms.Address)
	}

	if ready != nil {
		ready <- srv
	}

	errs, ctx := errgroup.WithContext(ctx)
	errs.Go(func() error {
		return d.Run(ctx, ch)
	})
	errs.Go(func() error {
		defer ch.Close()
		return srv.Serve(ctx, stop)
	})
	if ms != nil {
		errs.Go(func() error {
			return ms.Serve(ctx, stop)
		})
	}
	return errs.Wait()
}
