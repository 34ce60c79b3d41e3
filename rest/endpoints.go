// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rapture-chat/rapture/schema"
)

// fetch sends request and decodes the response into a new T. Returns
// (nil, nil) when Do does, for an unrecognized status.
func fetch[T any](ctx context.Context, client *Client, request Request) (*T, error) {
	response, err := client.Do(ctx, request)
	if err != nil || response == nil {
		return nil, err
	}
	var result T
	if err := response.Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// exec sends a request whose response body is ignored.
func (client *Client) exec(ctx context.Context, request Request) error {
	_, err := client.Do(ctx, request)
	return err
}

func channelRoute(method, suffix string, channelID schema.Snowflake) (string, string) {
	return method + " /channels/:channel_id" + suffix, channelID.String()
}

func guildRoute(method, suffix string, guildID schema.Snowflake) (string, string) {
	return method + " /guilds/:guild_id" + suffix, guildID.String()
}

// GetGateway returns the URL to open gateway connections on.
func (client *Client) GetGateway(ctx context.Context) (*schema.GatewayInfo, error) {
	return fetch[schema.GatewayInfo](ctx, client, Request{
		Route: "GET /gateway",
		Path:  "/gateway",
	})
}

// GetGatewayBot returns the gateway URL with the recommended shard
// count and the remaining identify budget.
func (client *Client) GetGatewayBot(ctx context.Context) (*schema.GatewayBotInfo, error) {
	return fetch[schema.GatewayBotInfo](ctx, client, Request{
		Route: "GET /gateway/bot",
		Path:  "/gateway/bot",
	})
}

// GetCurrentUser returns the user the token belongs to.
func (client *Client) GetCurrentUser(ctx context.Context) (*schema.User, error) {
	return fetch[schema.User](ctx, client, Request{
		Route: "GET /users/@me",
		Path:  "/users/@me",
	})
}

// GetUser returns a user by id.
func (client *Client) GetUser(ctx context.Context, userID schema.Snowflake) (*schema.User, error) {
	return fetch[schema.User](ctx, client, Request{
		Route: "GET /users/:id",
		Path:  "/users/" + userID.String(),
	})
}

// GetChannel returns a channel by id.
func (client *Client) GetChannel(ctx context.Context, channelID schema.Snowflake) (*schema.Channel, error) {
	route, major := channelRoute(http.MethodGet, "", channelID)
	return fetch[schema.Channel](ctx, client, Request{
		Route:   route,
		MajorID: major,
		Path:    "/channels/" + channelID.String(),
	})
}

// DeleteChannel deletes a guild channel or closes a DM, returning the
// deleted channel.
func (client *Client) DeleteChannel(ctx context.Context, channelID schema.Snowflake, reason string) (*schema.Channel, error) {
	route, major := channelRoute(http.MethodDelete, "", channelID)
	return fetch[schema.Channel](ctx, client, Request{
		Route:   route,
		MajorID: major,
		Method:  http.MethodDelete,
		Path:    "/channels/" + channelID.String(),
		Reason:  reason,
	})
}

// MessageQuery selects a page of channel history. At most one of
// Around, Before, and After should be set. Limit is 1-100; zero uses the
// server default of 50.
type MessageQuery struct {
	Around schema.Snowflake
	Before schema.Snowflake
	After  schema.Snowflake
	Limit  int
}

func (query MessageQuery) values() url.Values {
	values := url.Values{}
	if query.Around != 0 {
		values.Set("around", query.Around.String())
	}
	if query.Before != 0 {
		values.Set("before", query.Before.String())
	}
	if query.After != 0 {
		values.Set("after", query.After.String())
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	return values
}

// GetChannelMessages returns messages from a channel's history, newest
// first.
func (client *Client) GetChannelMessages(ctx context.Context, channelID schema.Snowflake, query MessageQuery) ([]schema.Message, error) {
	route, major := channelRoute(http.MethodGet, "/messages", channelID)
	messages, err := fetch[[]schema.Message](ctx, client, Request{
		Route:   route,
		MajorID: major,
		Path:    "/channels/" + channelID.String() + "/messages",
		Query:   query.values(),
	})
	if err != nil || messages == nil {
		return nil, err
	}
	return *messages, nil
}

// CreateMessage posts a message to a channel.
func (client *Client) CreateMessage(ctx context.Context, channelID schema.Snowflake, message schema.MessageSend) (*schema.Message, error) {
	route, major := channelRoute(http.MethodPost, "/messages", channelID)
	return fetch[schema.Message](ctx, client, Request{
		Route:   route,
		MajorID: major,
		Method:  http.MethodPost,
		Path:    "/channels/" + channelID.String() + "/messages",
		Body:    message,
	})
}

// EditMessage edits a message the current user sent.
func (client *Client) EditMessage(ctx context.Context, channelID, messageID schema.Snowflake, edit schema.MessageEdit) (*schema.Message, error) {
	route, major := channelRoute(http.MethodPatch, "/messages/:id", channelID)
	return fetch[schema.Message](ctx, client, Request{
		Route:   route,
		MajorID: major,
		Method:  http.MethodPatch,
		Path:    "/channels/" + channelID.String() + "/messages/" + messageID.String(),
		Body:    edit,
	})
}

// DeleteMessage deletes a message.
func (client *Client) DeleteMessage(ctx context.Context, channelID, messageID schema.Snowflake, reason string) error {
	route, major := channelRoute(http.MethodDelete, "/messages/:id", channelID)
	return client.exec(ctx, Request{
		Route:   route,
		MajorID: major,
		Method:  http.MethodDelete,
		Path:    "/channels/" + channelID.String() + "/messages/" + messageID.String(),
		Reason:  reason,
	})
}

// TriggerTyping shows the typing indicator in a channel for a few
// seconds.
func (client *Client) TriggerTyping(ctx context.Context, channelID schema.Snowflake) error {
	route, major := channelRoute(http.MethodPost, "/typing", channelID)
	return client.exec(ctx, Request{
		Route:   route,
		MajorID: major,
		Method:  http.MethodPost,
		Path:    "/channels/" + channelID.String() + "/typing",
	})
}

// CreateReaction reacts to a message as the current user. emoji is a
// unicode emoji or "name:id" for a custom one.
func (client *Client) CreateReaction(ctx context.Context, channelID, messageID schema.Snowflake, emoji string) error {
	route, major := channelRoute(http.MethodPut, "/messages/:id/reactions/:emoji/@me", channelID)
	return client.exec(ctx, Request{
		Route:   route,
		MajorID: major,
		Method:  http.MethodPut,
		Path:    "/channels/" + channelID.String() + "/messages/" + messageID.String() + "/reactions/" + url.PathEscape(emoji) + "/@me",
	})
}

// GetGuild returns a guild by id.
func (client *Client) GetGuild(ctx context.Context, guildID schema.Snowflake) (*schema.Guild, error) {
	route, major := guildRoute(http.MethodGet, "", guildID)
	return fetch[schema.Guild](ctx, client, Request{
		Route:   route,
		MajorID: major,
		Path:    "/guilds/" + guildID.String(),
	})
}

// RemoveGuildMember kicks a member from a guild.
func (client *Client) RemoveGuildMember(ctx context.Context, guildID, userID schema.Snowflake, reason string) error {
	route, major := guildRoute(http.MethodDelete, "/members/:id", guildID)
	return client.exec(ctx, Request{
		Route:   route,
		MajorID: major,
		Method:  http.MethodDelete,
		Path:    "/guilds/" + guildID.String() + "/members/" + userID.String(),
		Reason:  reason,
	})
}
