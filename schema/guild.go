// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// ChannelType enumerates channel kinds.
type ChannelType int

const (
	ChannelTypeGuildText     ChannelType = 0
	ChannelTypeDM            ChannelType = 1
	ChannelTypeGuildVoice    ChannelType = 2
	ChannelTypeGroupDM       ChannelType = 3
	ChannelTypeGuildCategory ChannelType = 4
)

// Channel is a guild or direct-message channel.
type Channel struct {
	ID       Snowflake   `json:"id"`
	Type     ChannelType `json:"type"`
	GuildID  *Snowflake  `json:"guild_id,omitempty"`
	Name     string      `json:"name,omitempty"`
	Topic    *string     `json:"topic,omitempty"`
	Position int         `json:"position,omitempty"`
	ParentID *Snowflake  `json:"parent_id,omitempty"`
	NSFW     bool        `json:"nsfw,omitempty"`
}

// Guild is a server. Channels and Members are populated only in
// GUILD_CREATE dispatches.
type Guild struct {
	ID          Snowflake `json:"id"`
	Name        string    `json:"name"`
	OwnerID     Snowflake `json:"owner_id"`
	Unavailable bool      `json:"unavailable,omitempty"`
	MemberCount int       `json:"member_count,omitempty"`
	Large       bool      `json:"large,omitempty"`
	Channels    []Channel `json:"channels,omitempty"`
	Members     []Member  `json:"members,omitempty"`
}

// UnavailableGuild is a guild known only by id, as listed in READY or
// sent in GUILD_DELETE during an outage.
type UnavailableGuild struct {
	ID          Snowflake `json:"id"`
	Unavailable bool      `json:"unavailable"`
}

// Member is a user's membership in a guild.
type Member struct {
	User     *User       `json:"user,omitempty"`
	Nick     *string     `json:"nick"`
	Roles    []Snowflake `json:"roles"`
	JoinedAt time.Time   `json:"joined_at"`
	Deaf     bool        `json:"deaf"`
	Mute     bool        `json:"mute"`
}
