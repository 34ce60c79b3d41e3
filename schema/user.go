// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// User is an account, bot or human.
type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	GlobalName    *string   `json:"global_name"`
	Avatar        *string   `json:"avatar"`
	Bot           bool      `json:"bot,omitempty"`
	System        bool      `json:"system,omitempty"`
}

// Mention returns the message markup that pings the user.
func (user User) Mention() string {
	return "<@" + user.ID.String() + ">"
}

// DisplayName returns the global display name when set, else the
// username.
func (user User) DisplayName() string {
	if user.GlobalName != nil && *user.GlobalName != "" {
		return *user.GlobalName
	}
	return user.Username
}
