/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

type ServerOpt func(*Server) error

type Server struct {
	listener net.Listener
	Address  string
}

func WithAddress(addr string) ServerOpt {
	return func(s *Server) error {
		s.Address = addr
		return nil
	}
}

func NewServer(ctx context.Context, opts ...ServerOpt) (*Server, error) {
	var s Server
	for _, o := range opts {
		if err := o(&s); err != nil {
			return nil, err
		}
	}

	ln, err := NewListener(s.Address)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	s.Address = ln.Addr().String()

	return &s, nil
}

func Handler() http.Handler {
	handler := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	return mux
}

// Serve blocks until stop is closed or ctx is done, then shuts the server down.
func (s *Server) Serve(ctx context.Context, stop <-chan struct{}) error {
	server := http.Server{
		Handler: Handler(),
	}

	errs, ctx := errgroup.WithContext(ctx)
	errs.Go(func() error {
		if err := server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "failed to serve metrics")
		}
		return nil
	})
	errs.Go(func() error {
		select {
		case <-stop:
		case <-ctx.Done():
		}
		log.G(ctx).Infof("shutting down metrics server on %s", s.Address)
		if err := server.Shutdown(context.Background()); err != nil {
			return errors.Wrap(err, "failed to shutdown metric server")
		}
		return nil
	})
	return errs.Wait()
}
