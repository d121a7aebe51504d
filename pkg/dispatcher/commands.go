/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package dispatcher

import (
	"context"
	"fmt"

	"github.com/containerd/log"

	"github.com/BSAI-24005/file-verse/pkg/dirtree"
	"github.com/BSAI-24005/file-verse/pkg/protocol"
	"github.com/BSAI-24005/file-verse/pkg/store"
)

// Operation names reported in responses.
const (
	opLogin   = "login"
	opLogout  = "logout"
	opWhoami  = "whoami"
	opStats   = "stats"
	opExit    = "exit"
	opDirList = "dir_list"
	opUnknown = "unknown"

	sessionPrefix = "sess_"
)

type loginData struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type sessionData struct {
	SessionID string `json:"session_id"`
}

type statsData struct {
	TotalSize uint64 `json:"total_size"`
	UsedSpace uint64 `json:"used_space"`
	FreeSpace uint64 `json:"free_space"`
}

type dirListData struct {
	Path    string          `json:"path"`
	Entries []dirtree.Entry `json:"entries"`
}

func (d *Dispatcher) commandTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		"login":       d.login,
		"user_login":  d.login,
		"whoami":      d.whoami,
		"stats":       d.stats,
		"logout":      d.logout,
		"user_logout": d.logout,
		"exit":        d.exit,
		"file_read":   notImplemented("file_read"),
		"file_create": notImplemented("file_create"),
		"dir_list":    d.dirList,
	}
}

func unknownCommand(requestID string) *protocol.Response {
	return protocol.Failure(opUnknown, requestID, "unknown command")
}

func (d *Dispatcher) login(ctx context.Context, c *call) *protocol.Response {
	username := c.fields.Get(protocol.KeyUsername, "")
	password := c.fields.Get(protocol.KeyPassword, "")
	err := d.image.Authenticate(username, password)
	d.recordLogin(ctx, c, username, err == nil)
	if err != nil {
		log.G(ctx).WithError(err).WithField("username", username).Info("login rejected")
		return protocol.Failure(opLogin, c.requestID, "Invalid credentials").
			WithCode(protocol.CodeInvalidCredentials)
	}
	return protocol.Success(opLogin, c.requestID, loginData{
		Message:   "logged_in",
		SessionID: sessionPrefix + username,
	})
}

func (d *Dispatcher) recordLogin(ctx context.Context, c *call, username string, ok bool) {
	if d.recorder == nil {
		return
	}
	ev := store.LoginEvent{
		Username:  username,
		Success:   ok,
		RequestID: c.requestID,
		Remote:    c.remote,
	}
	if err := d.recorder.RecordLogin(ctx, ev); err != nil {
		log.G(ctx).WithError(err).Warn("failed to record login attempt")
	}
}

func (d *Dispatcher) whoami(ctx context.Context, c *call) *protocol.Response {
	sid := c.fields.Get(protocol.KeySessionID, "")
	if sid == "" {
		return protocol.Failure(opWhoami, c.requestID, "no session").WithCode(protocol.CodeNoSession)
	}
	return protocol.Success(opWhoami, c.requestID, sessionData{SessionID: sid})
}

func (d *Dispatcher) stats(ctx context.Context, c *call) *protocol.Response {
	st, err := d.image.Stats()
	if err != nil {
		log.G(ctx).WithError(err).Error("failed to read image stats")
		return protocol.Failure(opStats, c.requestID, "cannot get stats")
	}
	return protocol.Success(opStats, c.requestID, statsData{
		TotalSize: st.TotalSize,
		UsedSpace: st.UsedSpace,
		FreeSpace: st.FreeSpace,
	})
}

func (d *Dispatcher) logout(ctx context.Context, c *call) *protocol.Response {
	return protocol.Success(opLogout, c.requestID, nil)
}

func (d *Dispatcher) exit(ctx context.Context, c *call) *protocol.Response {
	return protocol.Success(opExit, c.requestID, nil)
}

func notImplemented(op string) handlerFunc {
	return func(ctx context.Context, c *call) *protocol.Response {
		return protocol.Failure(op, c.requestID, fmt.Sprintf("%s not implemented in core", op)).
			WithCode(protocol.CodeNotImplemented)
	}
}

// dirList answers with the children of path. Paths the tree does not know
// list as empty.
func (d *Dispatcher) dirList(ctx context.Context, c *call) *protocol.Response {
	path := c.fields.Get(protocol.KeyPath, "/")
	entries, err := d.tree.List(path)
	if err != nil {
		log.G(ctx).WithError(err).Debug("dir_list on unknown path")
	}
	if entries == nil {
		entries = []dirtree.Entry{}
	}
	return protocol.Success(opDirList, c.requestID, dirListData{Path: path, Entries: entries})
}
