// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsExpectedCloseError reports whether err is what a reader sees after
// its own side (or the peer) tore the connection down: EOF, a closed
// connection, a broken pipe, or a reset. The gateway closes its socket
// from the heartbeat goroutine when it detects a zombie connection, and
// the read loop must not log that as a failure.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
