// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"sync/atomic"
	"time"
)

// Session is the server-side state a connection can resume: the
// session id from READY, the URL to resume on, and the sequence number
// of the last dispatch received.
//
// A Session is created on READY and replaced by the next READY. It
// outlives transport connections. The sequence and invalid flag are
// atomic because the read loop writes them while the heartbeat loop
// and callers read them.
type Session struct {
	id        string
	resumeURL string
	sequence  atomic.Int64
	invalid   atomic.Bool
}

func newSession(id, resumeURL string) *Session {
	return &Session{id: id, resumeURL: resumeURL}
}

func sessionFromState(state SessionState) *Session {
	session := newSession(state.ID, state.ResumeURL)
	session.sequence.Store(state.Sequence)
	return session
}

// ID returns the session id.
func (session *Session) ID() string { return session.id }

// ResumeURL returns the gateway URL to resume on, or "" to use the
// default gateway URL.
func (session *Session) ResumeURL() string { return session.resumeURL }

// Sequence returns the sequence number of the last dispatch, or 0
// before any.
func (session *Session) Sequence() int64 { return session.sequence.Load() }

// Invalid reports whether the server refused to resume this session.
func (session *Session) Invalid() bool { return session.invalid.Load() }

// observe records the sequence number of the dispatch just received.
// The last frame wins; resume and heartbeats carry exactly that value.
func (session *Session) observe(sequence int64) {
	session.sequence.Store(sequence)
}

func (session *Session) invalidate() {
	session.invalid.Store(true)
}

func (session *Session) state(savedAt time.Time) SessionState {
	return SessionState{
		ID:        session.id,
		ResumeURL: session.resumeURL,
		Sequence:  session.Sequence(),
		SavedAt:   savedAt,
	}
}

// SessionState is a point-in-time copy of a session, as returned by
// [Gateway.Session] and persisted by a [SessionStore].
type SessionState struct {
	ID        string    `cbor:"1,keyasint" json:"id"`
	ResumeURL string    `cbor:"2,keyasint" json:"resume_url"`
	Sequence  int64     `cbor:"3,keyasint" json:"sequence"`
	SavedAt   time.Time `cbor:"4,keyasint" json:"saved_at"`
}
