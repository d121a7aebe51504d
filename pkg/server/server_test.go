/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BSAI-24005/file-verse/pkg/dispatcher"
	"github.com/BSAI-24005/file-verse/pkg/omni"
	"github.com/BSAI-24005/file-verse/pkg/queue"
)

// startDispatcher formats a fresh image and runs a dispatcher over ch until
// the test ends.
func startDispatcher(t *testing.T, ch *queue.Channel) {
	path := filepath.Join(t.TempDir(), "test.omni")
	_, err := omni.Format(path, omni.DefaultFormatOptions())
	require.Nil(t, err)
	img, _, err := omni.OpenAndValidate(path)
	require.Nil(t, err)
	d, err := dispatcher.New(img)
	require.Nil(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), ch) }()
	t.Cleanup(func() {
		ch.Close()
		require.Nil(t, <-done)
	})
}

func startServer(t *testing.T) (*Server, chan struct{}) {
	ch := queue.NewChannel(16)
	startDispatcher(t, ch)
	s, err := New(ch, WithLineAddress("127.0.0.1:0"), WithHTTPAddress("127.0.0.1:0"))
	require.Nil(t, err)
	require.Nil(t, s.Listen())

	stop := make(chan struct{})
	served := make(chan error, 1)
	go func() { served <- s.Serve(context.Background(), stop) }()
	t.Cleanup(func() {
		select {
		case <-stop:
		default:
			close(stop)
		}
		require.Nil(t, <-served)
	})
	return s, stop
}

func TestLineProtocol(t *testing.T) {
	s, _ := startServer(t)

	conn, err := net.Dial("tcp", s.LineAddr().String())
	require.Nil(t, err)
	defer conn.Close()
	require.Nil(t, conn.SetDeadline(time.Now().Add(10*time.Second)))

	// Two messages in one write, one split across writes, CRLF and blank lines.
	_, err = io.WriteString(conn, `{"cmd":"exit","request_id":"1"}`+"\n\n"+`{"cmd":"whoami","session_id":"sess_admin","request_id":"2"}`+"\r\n"+`{"cmd":"lo`)
	require.Nil(t, err)
	_, err = io.WriteString(conn, `gin","username":"admin","password":"7861","request_id":"3"}`+"\n")
	require.Nil(t, err)

	r := bufio.NewReader(conn)
	for _, want := range []string{
		`{"status":"success","operation":"exit","request_id":"1"}`,
		`{"status":"success","operation":"whoami","request_id":"2","data":{"session_id":"sess_admin"}}`,
		`{"status":"success","operation":"login","request_id":"3","data":{"message":"logged_in","session_id":"sess_admin"}}`,
	} {
		line, err := r.ReadString('\n')
		require.Nil(t, err)
		assert.Equal(t, want+"\n", line)
	}

	// A malformed message degrades to an error reply and the connection stays up.
	_, err = io.WriteString(conn, "garbage\n"+`{"cmd":"stats","request_id":"4"}`+"\n")
	require.Nil(t, err)
	line, err := r.ReadString('\n')
	require.Nil(t, err)
	assert.Contains(t, line, `"operation":"unknown"`)
	line, err = r.ReadString('\n')
	require.Nil(t, err)
	assert.Contains(t, line, `"request_id":"4"`)
}

func TestHTTPHandler(t *testing.T) {
	ch := queue.NewChannel(4)
	startDispatcher(t, ch)
	s, err := New(ch)
	require.Nil(t, err)
	ts := httptest.NewServer(s.HTTPHandler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/any/path", "text/plain", strings.NewReader(`{"cmd":"stats","request_id":"h1"}`))
	require.Nil(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Nil(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, `{"status":"success","operation":"stats","request_id":"h1","data":{"total_size":104857600,"used_space":0,"free_space":104857088}}`, string(body))

	resp, err = http.Get(ts.URL + "/")
	require.Nil(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Nil(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Empty(t, body)
}

func TestHTTPAfterQueueClosed(t *testing.T) {
	ch := queue.NewChannel(1)
	ch.Close()
	s, err := New(ch)
	require.Nil(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cmd":"exit"}`))
	s.HTTPHandler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeOverHTTPListener(t *testing.T) {
	s, _ := startServer(t)

	resp, err := http.Post("http://"+s.HTTPAddr().String(), "application/json", strings.NewReader(`{"cmd":"file_read","request_id":"9"}`))
	require.Nil(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Nil(t, err)
	assert.Equal(t, `{"status":"error","operation":"file_read","request_id":"9","error_code":-8,"error_message":"file_read not implemented in core"}`, string(body))
}

func TestStopClosesConnections(t *testing.T) {
	s, stop := startServer(t)

	conn, err := net.Dial("tcp", s.LineAddr().String())
	require.Nil(t, err)
	defer conn.Close()
	_, err = io.WriteString(conn, `{"cmd":"exit"}`+"\n")
	require.Nil(t, err)
	_, err = bufio.NewReader(conn).ReadString('\n')
	require.Nil(t, err)

	close(stop)
	require.Nil(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.NotNil(t, err)
}

func TestScanCompleteLinesDropsFragment(t *testing.T) {
	adv, tok, err := scanCompleteLines([]byte("abc"), true)
	require.Nil(t, err)
	assert.Equal(t, 3, adv)
	assert.Nil(t, tok)

	adv, tok, err = scanCompleteLines([]byte("ab\ncd"), false)
	require.Nil(t, err)
	assert.Equal(t, 3, adv)
	assert.Equal(t, []byte("ab"), tok)

	adv, tok, err = scanCompleteLines([]byte("cd"), false)
	require.Nil(t, err)
	assert.Equal(t, 0, adv)
	assert.Nil(t, tok)
}

func TestNewRequiresChannel(t *testing.T) {
	_, err := New(nil)
	assert.NotNil(t, err)
	_, err = New(queue.NewChannel(1), WithMaxMessageSize(0))
	assert.NotNil(t, err)
}

func TestCloseReleasesListeners(t *testing.T) {
	s, err := New(queue.NewChannel(1), WithLineAddress("127.0.0.1:0"), WithHTTPAddress("127.0.0.1:0"))
	require.Nil(t, err)
	require.Nil(t, s.Listen())
	lineAddr, httpAddr := s.LineAddr().String(), s.HTTPAddr().String()

	require.Nil(t, s.Close())
	assert.Nil(t, s.LineAddr())
	require.Nil(t, s.Close())

	for _, addr := range []string{lineAddr, httpAddr} {
		ln, err := net.Listen("tcp", addr)
		require.Nil(t, err)
		ln.Close()
	}
}
