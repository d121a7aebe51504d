/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package server hosts the two client transports. Both only frame messages
// and enqueue them; replies come back from the dispatcher through the
// request's ReplyWriter.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/BSAI-24005/file-verse/pkg/queue"
)

const (
	defaultLineAddress    = ":8080"
	defaultHTTPAddress    = ":4000"
	defaultMaxMessageSize = 64 * 1024
	defaultShutdownGrace  = 5 * time.Second
)

type Opt func(s *Server) error

func WithLineAddress(addr string) Opt {
	return func(s *Server) error {
		s.lineAddress = addr
		return nil
	}
}

func WithHTTPAddress(addr string) Opt {
	return func(s *Server) error {
		s.httpAddress = addr
		return nil
	}
}

// WithMaxMessageSize bounds one line or one HTTP body.
func WithMaxMessageSize(n int) Opt {
	return func(s *Server) error {
		if n <= 0 {
			return errors.Errorf("invalid max message size %d", n)
		}
		s.maxMessageSize = n
		return nil
	}
}

func WithShutdownGrace(d time.Duration) Opt {
	return func(s *Server) error {
		s.shutdownGrace = d
		return nil
	}
}

type Server struct {
	ch *queue.Channel

	lineAddress    string
	httpAddress    string
	maxMessageSize int
	shutdownGrace  time.Duration

	lineListener net.Listener
	httpListener net.Listener
	httpServer   *http.Server

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	closing bool
	readers sync.WaitGroup
}

func New(ch *queue.Channel, opts ...Opt) (*Server, error) {
	if ch == nil {
		return nil, errors.New("request channel is required")
	}
	s := &Server{
		ch:             ch,
		lineAddress:    defaultLineAddress,
		httpAddress:    defaultHTTPAddress,
		maxMessageSize: defaultMaxMessageSize,
		shutdownGrace:  defaultShutdownGrace,
		conns:          make(map[net.Conn]struct{}),
	}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Listen binds both transports. Serve calls it when it has not been called.
func (s *Server) Listen() error {
	if s.lineListener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.lineAddress)
	if err != nil {
		return errors.Wrapf(err, "listen line protocol on %s", s.lineAddress)
	}
	hl, err := net.Listen("tcp", s.httpAddress)
	if err != nil {
		ln.Close()
		return errors.Wrapf(err, "listen http on %s", s.httpAddress)
	}
	s.lineListener = ln
	s.httpListener = hl
	s.httpServer = &http.Server{
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Close releases listeners bound by Listen when Serve will not run.
func (s *Server) Close() error {
	if s.lineListener == nil {
		return nil
	}
	lineErr := s.lineListener.Close()
	httpErr := s.httpListener.Close()
	s.lineListener, s.httpListener = nil, nil
	if lineErr != nil {
		return errors.Wrap(lineErr, "close line listener")
	}
	if httpErr != nil {
		return errors.Wrap(httpErr, "close http listener")
	}
	return nil
}

func (s *Server) LineAddr() net.Addr {
	if s.lineListener == nil {
		return nil
	}
	return s.lineListener.Addr()
}

func (s *Server) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

// Serve runs both accept loops until stop is closed or ctx is done. It
// returns once every connection reader has exited. The request channel is
// left open so the dispatcher can drain it.
func (s *Server) Serve(ctx context.Context, stop <-chan struct{}) error {
	if err := s.Listen(); err != nil {
		return err
	}
	log.G(ctx).Infof("line protocol listening on %s", s.LineAddr())
	log.G(ctx).Infof("http listening on %s", s.HTTPAddr())

	errs, ctx := errgroup.WithContext(ctx)
	errs.Go(func() error {
		return s.acceptLines(ctx)
	})
	errs.Go(func() error {
		s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }
		if err := s.httpServer.Serve(s.httpListener); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "serve http")
		}
		return nil
	})
	errs.Go(func() error {
		select {
		case <-stop:
		case <-ctx.Done():
		}
		return s.shutdown(ctx)
	})
	err := errs.Wait()
	s.readers.Wait()
	return err
}

func (s *Server) shutdown(ctx context.Context) error {
	log.G(ctx).Info("shutting down listeners")
	s.mu.Lock()
	s.closing = true
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	lineErr := s.lineListener.Close()
	sctx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(sctx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	if lineErr != nil && !isClosedErr(lineErr) {
		return errors.Wrap(lineErr, "close line listener")
	}
	return nil
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
