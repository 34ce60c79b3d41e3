// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"
	"strconv"
)

// Opcode identifies the kind of a gateway packet.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpPresenceUpdate      Opcode = 3
	OpVoiceStateUpdate    Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
)

var opcodeNames = map[Opcode]string{
	OpDispatch:            "dispatch",
	OpHeartbeat:           "heartbeat",
	OpIdentify:            "identify",
	OpPresenceUpdate:      "presence_update",
	OpVoiceStateUpdate:    "voice_state_update",
	OpResume:              "resume",
	OpReconnect:           "reconnect",
	OpRequestGuildMembers: "request_guild_members",
	OpInvalidSession:      "invalid_session",
	OpHello:               "hello",
	OpHeartbeatAck:        "heartbeat_ack",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "op" + strconv.Itoa(int(op))
}

// Gateway close codes sent by the server.
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSequence      = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014
)

// Close codes the client sends. The server ends the session on 1000 and
// 1001, so every close the client intends to resume from uses
// closeResumable.
const (
	closeNormal    = 1000
	closeResumable = 4000
)

// CloseError is the transport closing with a close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (err *CloseError) Error() string {
	if err.Reason == "" {
		return fmt.Sprintf("gateway: connection closed with code %d", err.Code)
	}
	return fmt.Sprintf("gateway: connection closed with code %d: %s", err.Code, err.Reason)
}

// Fatal reports whether reconnecting cannot succeed without a
// configuration change.
func (err *CloseError) Fatal() bool {
	switch err.Code {
	case CloseAuthenticationFailed,
		CloseInvalidShard,
		CloseShardingRequired,
		CloseInvalidAPIVersion,
		CloseInvalidIntents,
		CloseDisallowedIntents:
		return true
	}
	return false
}

// InvalidatesSession reports whether the session can no longer be
// resumed after this close.
func (err *CloseError) InvalidatesSession() bool {
	return err.Code == CloseInvalidSequence || err.Code == CloseSessionTimedOut
}
