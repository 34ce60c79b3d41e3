// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"runtime"
)

// Packet is one inbound gateway frame. Sequence and Type are set only
// on dispatches.
type Packet struct {
	Op       Opcode          `json:"op"`
	Sequence int64           `json:"s"`
	Type     EventType       `json:"t"`
	Data     json.RawMessage `json:"d"`
}

// outboundPacket keeps "d" even when nil: a heartbeat before any
// dispatch carries "d": null.
type outboundPacket struct {
	Op   Opcode `json:"op"`
	Data any    `json:"d"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// IdentifyProperties describe the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// DefaultIdentifyProperties returns the properties sent when Config
// leaves them empty.
func DefaultIdentifyProperties() IdentifyProperties {
	return IdentifyProperties{
		OS:      runtime.GOOS,
		Browser: "rapture",
		Device:  "rapture",
	}
}

type identifyData struct {
	Token          string             `json:"token"`
	Properties     IdentifyProperties `json:"properties"`
	Compress       bool               `json:"compress"`
	LargeThreshold int                `json:"large_threshold"`
	Shard          [2]int             `json:"shard"`
	Presence       *Presence          `json:"presence,omitempty"`
	Intents        int64              `json:"intents"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Sequence  int64  `json:"seq"`
}

// Presence is the bot's status as shown to users.
type Presence struct {
	// Since is the unix time in milliseconds the client went idle, or
	// nil.
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities"`
	// Status is one of online, dnd, idle, invisible, offline.
	Status string `json:"status"`
	AFK    bool   `json:"afk"`
}

// Activity types.
const (
	ActivityPlaying   = 0
	ActivityStreaming = 1
	ActivityListening = 2
	ActivityWatching  = 3
	ActivityCustom    = 4
	ActivityCompeting = 5
)

// Activity is one entry of a presence.
type Activity struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	URL   string `json:"url,omitempty"`
	State string `json:"state,omitempty"`
}
