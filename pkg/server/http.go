/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/containerd/log"

	"github.com/BSAI-24005/file-verse/pkg/errdefs"
	metrics "github.com/BSAI-24005/file-verse/pkg/metric"
	"github.com/BSAI-24005/file-verse/pkg/queue"
)

const transportHTTP = "http"

// replySink carries the single reply of one HTTP request back to its handler.
type replySink chan string

func (r replySink) WriteReply(resp string) error {
	select {
	case r <- resp:
	default:
	}
	return nil
}

// HTTPHandler accepts a message as a POST body on any path, queues it behind
// line protocol traffic and answers with the dispatcher's reply.
func (s *Server) HTTPHandler() http.Handler {
	return http.HandlerFunc(s.handleMessage)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	metrics.ConnectionsActive.WithLabelValues(transportHTTP).Inc()
	defer metrics.ConnectionsActive.WithLabelValues(transportHTTP).Dec()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(s.maxMessageSize)))
	if err != nil {
		log.G(ctx).WithError(err).Warn("failed to read http body")
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	sink := make(replySink, 1)
	err = s.ch.Enqueue(queue.Request{
		Conn:      sink,
		Message:   strings.TrimRight(string(body), "\r\n"),
		Remote:    r.RemoteAddr,
		Transport: transportHTTP,
	})
	if err != nil {
		if !errdefs.IsClosed(err) {
			log.G(ctx).WithError(err).Error("failed to enqueue http request")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	select {
	case resp := <-sink:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, strings.TrimSuffix(resp, "\n")); err != nil {
			log.G(ctx).WithError(err).Debug("failed to write http reply")
		}
	case <-ctx.Done():
		log.G(ctx).WithField("remote", r.RemoteAddr).Debug("http client went away before reply")
	}
}
