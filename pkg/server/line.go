/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package server

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"sync"

	"github.com/containerd/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
	metrics "github.com/BSAI-24005/file-verse/pkg/metric"
	"github.com/BSAI-24005/file-verse/pkg/queue"
)

const transportLine = "line"

// lineConn is the reply handle of one line protocol client.
type lineConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *lineConn) WriteReply(resp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.Write([]byte(resp))
	return err
}

func (s *Server) acceptLines(ctx context.Context) error {
	for {
		conn, err := s.lineListener.Accept()
		if err != nil {
			if s.isClosing() || isClosedErr(err) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.G(ctx).WithError(err).Warn("temporary accept error")
				continue
			}
			return errors.Wrap(err, "accept line connection")
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.readers.Add(1)
		go s.readLines(ctx, conn)
	}
}

// scanCompleteLines splits on '\n' and never yields a trailing fragment that
// was not terminated before EOF.
func scanCompleteLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

func (s *Server) readLines(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := log.G(ctx).WithFields(log.Fields{
		"conn":   uuid.NewString(),
		"remote": remote,
	})
	metrics.ConnectionsActive.WithLabelValues(transportLine).Inc()
	logger.Debug("line connection opened")

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic reading connection: %v", r)
		}
		conn.Close()
		s.untrack(conn)
		metrics.ConnectionsActive.WithLabelValues(transportLine).Dec()
		logger.Debug("line connection closed")
		s.readers.Done()
	}()

	reply := &lineConn{conn: conn}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), s.maxMessageSize)
	scanner.Split(scanCompleteLines)
	for scanner.Scan() {
		line := bytes.TrimSuffix(scanner.Bytes(), []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		err := s.ch.Enqueue(queue.Request{
			Conn:      reply,
			Message:   string(line),
			Remote:    remote,
			Transport: transportLine,
		})
		if err != nil {
			if !errdefs.IsClosed(err) {
				logger.WithError(err).Error("failed to enqueue request")
			}
			return
		}
	}
	if err := scanner.Err(); err != nil && !s.isClosing() && !errdefs.IsConnectionClosed(err) {
		logger.WithError(err).Warn("line connection read failed")
	}
}
