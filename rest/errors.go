// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rapture-chat/rapture/ratelimit"
)

// APIError is a rejected request: any 400-502 status other than 429.
// The platform's error body carries a numeric code, a message, and a
// nested object of per-field errors, which is flattened into Errors.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Code is the platform's JSON error code (for example 50035 for
	// invalid form body). Zero when the body carried none.
	Code int

	// Message is the top-level error description.
	Message string

	// Errors lists field-level failures, sorted by Path.
	Errors []FieldError
}

// FieldError is one field-level failure. Path is the dotted location
// of the field in the request body ("embeds.0.title").
type FieldError struct {
	Path    string
	Code    string
	Message string
}

func (err *APIError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "rest: HTTP %d", err.StatusCode)
	if err.Code != 0 {
		fmt.Fprintf(&builder, " [%d]", err.Code)
	}
	fmt.Fprintf(&builder, ": %s", err.Message)
	for _, fieldError := range err.Errors {
		fmt.Fprintf(&builder, "; %s: %s (%s)", fieldError.Path, fieldError.Message, fieldError.Code)
	}
	return builder.String()
}

// RateLimitError is a 429 response. Do returns it only when
// MaxAttempts is exhausted.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	Global     bool
	Code       int
}

func (err *RateLimitError) Error() string {
	scope := "route"
	if err.Global {
		scope = "global"
	}
	return fmt.Sprintf("rest: rate limited (%s), retry after %s: %s", scope, err.RetryAfter, err.Message)
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	var rateLimitError *RateLimitError
	if errors.As(err, &rateLimitError) {
		return true
	}
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}

// IsForbidden reports whether err is a 403 response, usually a missing
// permission.
func IsForbidden(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusForbidden
}

// HasCode reports whether err is an API error with the given platform
// error code.
func HasCode(err error, code int) bool {
	var apiError *APIError
	if errors.As(err, &apiError) {
		return apiError.Code == code
	}
	var rateLimitError *RateLimitError
	return errors.As(err, &rateLimitError) && rateLimitError.Code == code
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}

	var wireError struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Errors  json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Message != "" {
		apiError.Code = wireError.Code
		apiError.Message = wireError.Message
		if len(wireError.Errors) > 0 {
			flattenFieldErrors("", wireError.Errors, &apiError.Errors)
			sort.Slice(apiError.Errors, func(i, j int) bool {
				return apiError.Errors[i].Path < apiError.Errors[j].Path
			})
		}
	} else {
		apiError.Message = strings.TrimSpace(string(body))
		if apiError.Message == "" {
			apiError.Message = http.StatusText(statusCode)
		}
	}

	return apiError
}

// flattenFieldErrors walks the nested errors object. Leaves are
// "_errors" arrays; every other key is a path component.
func flattenFieldErrors(path string, raw json.RawMessage, into *[]FieldError) {
	var node map[string]json.RawMessage
	if json.Unmarshal(raw, &node) != nil {
		return
	}
	for key, value := range node {
		if key == "_errors" {
			var leaves []struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if json.Unmarshal(value, &leaves) != nil {
				continue
			}
			for _, leaf := range leaves {
				*into = append(*into, FieldError{Path: path, Code: leaf.Code, Message: leaf.Message})
			}
			continue
		}
		child := key
		if path != "" {
			child = path + "." + key
		}
		flattenFieldErrors(child, value, into)
	}
}

// parseRateLimitError decodes a 429 body. retry_after is in seconds and
// may be fractional; when the body lacks it the Retry-After header is
// used.
func parseRateLimitError(response *Response) *RateLimitError {
	rateLimitError := &RateLimitError{}

	var wire struct {
		Message    string   `json:"message"`
		RetryAfter *float64 `json:"retry_after"`
		Global     bool     `json:"global"`
		Code       int      `json:"code"`
	}
	if json.Unmarshal(response.Body, &wire) == nil {
		rateLimitError.Message = wire.Message
		rateLimitError.Global = wire.Global
		rateLimitError.Code = wire.Code
		if wire.RetryAfter != nil && *wire.RetryAfter >= 0 {
			rateLimitError.RetryAfter = time.Duration(*wire.RetryAfter * float64(time.Second))
		}
	}

	if rateLimitError.RetryAfter == 0 {
		if seconds, err := strconv.ParseFloat(response.Header.Get(ratelimit.HeaderRetryAfter), 64); err == nil && seconds > 0 {
			rateLimitError.RetryAfter = time.Duration(seconds * float64(time.Second))
		}
	}
	if strings.EqualFold(response.Header.Get(ratelimit.HeaderGlobal), "true") {
		rateLimitError.Global = true
	}
	if rateLimitError.Message == "" {
		rateLimitError.Message = "You are being rate limited."
	}
	return rateLimitError
}
