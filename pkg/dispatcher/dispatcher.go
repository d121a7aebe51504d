/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package dispatcher is the single consumer of the request channel. It maps
// each message onto a fixed command handler and writes the reply back to the
// connection the message came from. Because exactly one dispatcher runs, all
// image reads and writes are serialized.
package dispatcher

import (
	"context"
	"time"

	"github.com/containerd/log"
	"github.com/pkg/errors"

	"github.com/BSAI-24005/file-verse/pkg/dirtree"
	"github.com/BSAI-24005/file-verse/pkg/errdefs"
	metrics "github.com/BSAI-24005/file-verse/pkg/metric"
	"github.com/BSAI-24005/file-verse/pkg/omni"
	"github.com/BSAI-24005/file-verse/pkg/protocol"
	"github.com/BSAI-24005/file-verse/pkg/queue"
	"github.com/BSAI-24005/file-verse/pkg/store"
)

// LoginRecorder receives every login attempt.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, ev store.LoginEvent) error
}

type Opt func(d *Dispatcher) error

func WithDirTree(tree *dirtree.Tree) Opt {
	return func(d *Dispatcher) error {
		if tree == nil {
			return errors.New("directory tree cannot be nil")
		}
		d.tree = tree
		return nil
	}
}

func WithLoginRecorder(r LoginRecorder) Opt {
	return func(d *Dispatcher) error {
		d.recorder = r
		return nil
	}
}

type handlerFunc func(ctx context.Context, req *call) *protocol.Response

// call is one parsed request as seen by a handler.
type call struct {
	fields    protocol.Fields
	requestID string
	remote    string
}

type Dispatcher struct {
	image    *omni.Image
	tree     *dirtree.Tree
	recorder LoginRecorder
	handlers map[string]handlerFunc
}

func New(img *omni.Image, opts ...Opt) (*Dispatcher, error) {
	if img == nil {
		return nil, errors.New("image is required")
	}
	d := &Dispatcher{image: img}
	for _, o := range opts {
		if err := o(d); err != nil {
			return nil, err
		}
	}
	if d.tree == nil {
		d.tree = dirtree.New()
	}
	d.handlers = d.commandTable()
	return d, nil
}

// Handle turns one raw message into its response. It never fails: every
// problem, a panicking handler included, becomes an error response that
// still echoes the request id.
func (d *Dispatcher) Handle(ctx context.Context, req queue.Request) (resp *protocol.Response) {
	requestID := protocol.DefaultRequestID
	defer func() {
		if r := recover(); r != nil {
			log.G(ctx).Errorf("panic handling %q: %v", req.Message, r)
			resp = protocol.Failure(opUnknown, requestID, "internal error")
		}
	}()

	fields, err := protocol.Parse(req.Message)
	requestID = fields.Get(protocol.KeyRequestID, protocol.DefaultRequestID)
	if err != nil {
		log.G(ctx).WithError(err).Debugf("unparsable message %q", req.Message)
		return unknownCommand(requestID)
	}
	h, ok := d.handlers[fields.Get(protocol.KeyCmd, "")]
	if !ok {
		return unknownCommand(requestID)
	}
	return h(ctx, &call{fields: fields, requestID: requestID, remote: req.Remote})
}

// Run consumes ch until it is closed and drained. Reply write failures are
// logged and never stop the loop.
func (d *Dispatcher) Run(ctx context.Context, ch *queue.Channel) error {
	log.G(ctx).Info("dispatcher started")
	for {
		req, err := ch.Dequeue()
		if err != nil {
			if errdefs.IsClosed(err) {
				log.G(ctx).Info("dispatcher stopped, request channel closed")
				return nil
			}
			return err
		}
		d.serve(ctx, req)
	}
}

func (d *Dispatcher) serve(ctx context.Context, req queue.Request) {
	start := time.Now()
	resp := d.Handle(ctx, req)
	if req.Conn != nil {
		if err := req.Conn.WriteReply(resp.Encode() + "\n"); err != nil {
			log.G(ctx).WithError(err).WithField("remote", req.Remote).Warn("failed to write reply")
		}
	}
	metrics.ObserveRequest(resp.Operation, resp.Status, time.Since(start))
	if req.Remote != "" {
		metrics.ClientLastRequest.WithLabelValues(req.Remote, req.Transport).SetToCurrentTime()
	}
	log.G(ctx).WithFields(log.Fields{
		"operation":  resp.Operation,
		"request_id": resp.RequestID,
		"status":     resp.Status,
		"remote":     req.Remote,
	}).Debug("request served")
}
