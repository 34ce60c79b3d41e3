// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// Message is a message sent in a channel.
type Message struct {
	ID              Snowflake  `json:"id"`
	ChannelID       Snowflake  `json:"channel_id"`
	GuildID         *Snowflake `json:"guild_id,omitempty"`
	Author          User       `json:"author"`
	Content         string     `json:"content"`
	Timestamp       time.Time  `json:"timestamp"`
	EditedTimestamp *time.Time `json:"edited_timestamp"`
	TTS             bool       `json:"tts"`
	MentionEveryone bool       `json:"mention_everyone"`
	Mentions        []User     `json:"mentions"`
	Pinned          bool       `json:"pinned"`
	Type            int        `json:"type"`
}

// MessageSend is the body of a create-message request. Empty fields are
// omitted.
type MessageSend struct {
	Content          string            `json:"content,omitempty"`
	TTS              bool              `json:"tts,omitempty"`
	MessageReference *MessageReference `json:"message_reference,omitempty"`
}

// MessageEdit is the body of an edit-message request.
type MessageEdit struct {
	Content *string `json:"content,omitempty"`
}

// MessageReference points a reply at the message it answers.
type MessageReference struct {
	MessageID Snowflake  `json:"message_id"`
	ChannelID *Snowflake `json:"channel_id,omitempty"`
	GuildID   *Snowflake `json:"guild_id,omitempty"`
}
