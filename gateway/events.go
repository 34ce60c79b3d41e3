// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/rapture-chat/rapture/schema"
)

// EventType is the name of a dispatch ("MESSAGE_CREATE").
type EventType string

// Dispatch event types with typed decoders. EventSessionInvalidated is
// raised locally, never received.
const (
	EventReady              EventType = "READY"
	EventResumed            EventType = "RESUMED"
	EventMessageCreate      EventType = "MESSAGE_CREATE"
	EventMessageUpdate      EventType = "MESSAGE_UPDATE"
	EventMessageDelete      EventType = "MESSAGE_DELETE"
	EventChannelCreate      EventType = "CHANNEL_CREATE"
	EventChannelUpdate      EventType = "CHANNEL_UPDATE"
	EventChannelDelete      EventType = "CHANNEL_DELETE"
	EventGuildCreate        EventType = "GUILD_CREATE"
	EventGuildUpdate        EventType = "GUILD_UPDATE"
	EventGuildDelete        EventType = "GUILD_DELETE"
	EventGuildMemberAdd     EventType = "GUILD_MEMBER_ADD"
	EventGuildMemberUpdate  EventType = "GUILD_MEMBER_UPDATE"
	EventGuildMemberRemove  EventType = "GUILD_MEMBER_REMOVE"
	EventSessionInvalidated EventType = "SESSION_INVALIDATED"
)

// Event is a decoded dispatch.
type Event interface {
	EventType() EventType
}

// Ready is the first dispatch of a new session.
type Ready struct {
	Version          int                       `json:"v"`
	User             schema.User               `json:"user"`
	Guilds           []schema.UnavailableGuild `json:"guilds"`
	SessionID        string                    `json:"session_id"`
	ResumeGatewayURL string                    `json:"resume_gateway_url"`
	Shard            []int                     `json:"shard,omitempty"`
}

// Resumed marks the end of a successful resume's replay.
type Resumed struct{}

type MessageCreate struct {
	schema.Message
	Member *schema.Member `json:"member,omitempty"`
}

// MessageUpdate carries the edited message. Fields the edit did not
// touch may be zero.
type MessageUpdate struct {
	schema.Message
}

type MessageDelete struct {
	ID        schema.Snowflake  `json:"id"`
	ChannelID schema.Snowflake  `json:"channel_id"`
	GuildID   *schema.Snowflake `json:"guild_id,omitempty"`
}

type ChannelCreate struct{ schema.Channel }
type ChannelUpdate struct{ schema.Channel }
type ChannelDelete struct{ schema.Channel }

// GuildCreate is sent when a guild becomes available: after READY for
// each guild, and when the bot joins a guild.
type GuildCreate struct{ schema.Guild }
type GuildUpdate struct{ schema.Guild }

// GuildDelete is sent when the bot leaves a guild, or with Unavailable
// set during an outage.
type GuildDelete struct{ schema.UnavailableGuild }

type GuildMemberAdd struct {
	schema.Member
	GuildID schema.Snowflake `json:"guild_id"`
}

type GuildMemberUpdate struct {
	schema.Member
	GuildID schema.Snowflake `json:"guild_id"`
}

type GuildMemberRemove struct {
	GuildID schema.Snowflake `json:"guild_id"`
	User    schema.User      `json:"user"`
}

// SessionInvalidated is raised when the server answers with
// INVALID_SESSION. Resumable is the server's hint; the gateway
// identifies a new session either way.
type SessionInvalidated struct {
	Resumable bool
}

func (Ready) EventType() EventType              { return EventReady }
func (Resumed) EventType() EventType            { return EventResumed }
func (MessageCreate) EventType() EventType      { return EventMessageCreate }
func (MessageUpdate) EventType() EventType      { return EventMessageUpdate }
func (MessageDelete) EventType() EventType      { return EventMessageDelete }
func (ChannelCreate) EventType() EventType      { return EventChannelCreate }
func (ChannelUpdate) EventType() EventType      { return EventChannelUpdate }
func (ChannelDelete) EventType() EventType      { return EventChannelDelete }
func (GuildCreate) EventType() EventType        { return EventGuildCreate }
func (GuildUpdate) EventType() EventType        { return EventGuildUpdate }
func (GuildDelete) EventType() EventType        { return EventGuildDelete }
func (GuildMemberAdd) EventType() EventType     { return EventGuildMemberAdd }
func (GuildMemberUpdate) EventType() EventType  { return EventGuildMemberUpdate }
func (GuildMemberRemove) EventType() EventType  { return EventGuildMemberRemove }
func (SessionInvalidated) EventType() EventType { return EventSessionInvalidated }

// RawDispatch is an undecoded dispatch, delivered to [Gateway.OnAny]
// handlers for every event type including those without a typed
// decoder.
type RawDispatch struct {
	Type     EventType
	Sequence int64
	Data     json.RawMessage
}

type decodeFunc func(json.RawMessage) (Event, error)

// eventDecoders is the table of dispatch types this package decodes.
var eventDecoders = map[EventType]decodeFunc{
	EventReady:             decodeAs[Ready],
	EventResumed:           decodeAs[Resumed],
	EventMessageCreate:     decodeAs[MessageCreate],
	EventMessageUpdate:     decodeAs[MessageUpdate],
	EventMessageDelete:     decodeAs[MessageDelete],
	EventChannelCreate:     decodeAs[ChannelCreate],
	EventChannelUpdate:     decodeAs[ChannelUpdate],
	EventChannelDelete:     decodeAs[ChannelDelete],
	EventGuildCreate:       decodeAs[GuildCreate],
	EventGuildUpdate:       decodeAs[GuildUpdate],
	EventGuildDelete:       decodeAs[GuildDelete],
	EventGuildMemberAdd:    decodeAs[GuildMemberAdd],
	EventGuildMemberUpdate: decodeAs[GuildMemberUpdate],
	EventGuildMemberRemove: decodeAs[GuildMemberRemove],
}

func decodeAs[T any, P interface {
	*T
	Event
}](data json.RawMessage) (Event, error) {
	event := P(new(T))
	if len(data) == 0 {
		return event, nil
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, err
	}
	return event, nil
}

// decodeEvent decodes a dispatch payload. Returns (nil, nil) for types
// without a decoder.
func decodeEvent(eventType EventType, data json.RawMessage) (Event, error) {
	decode, ok := eventDecoders[eventType]
	if !ok {
		return nil, nil
	}
	event, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("gateway: decoding %s: %w", eventType, err)
	}
	return event, nil
}
