/*
 * Copyright (c) 2025. file-verse authors. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	DefaultRequestID = "0"
)

// Error codes carried in error_code.
const (
	CodeInvalidCredentials = -2
	CodeNotImplemented     = -8
	CodeNoSession          = -9
)

// Response is the single JSON object written back for every message. Field
// order is fixed by the struct.
type Response struct {
	Status       string      `json:"status"`
	Operation    string      `json:"operation"`
	RequestID    string      `json:"request_id"`
	Data         interface{} `json:"data,omitempty"`
	ErrorCode    *int        `json:"error_code,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

func Success(operation, requestID string, data interface{}) *Response {
	return &Response{
		Status:    StatusSuccess,
		Operation: operation,
		RequestID: requestID,
		Data:      data,
	}
}

// Failure builds an error response without an error_code.
func Failure(operation, requestID, message string) *Response {
	return &Response{
		Status:       StatusError,
		Operation:    operation,
		RequestID:    requestID,
		ErrorMessage: message,
	}
}

func (r *Response) WithCode(code int) *Response {
	r.ErrorCode = &code
	return r
}

func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}

// Encode renders r as one line of JSON without the trailing newline.
func (r *Response) Encode() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		fallback := Failure(r.Operation, r.RequestID, "internal error")
		fallback.Data = nil
		b, _ := json.Marshal(fallback)
		return string(b)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
