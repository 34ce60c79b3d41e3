// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/rapture-chat/rapture/gateway"
	"github.com/rapture-chat/rapture/schema"
)

type messenger interface {
	CreateMessage(ctx context.Context, channelID schema.Snowflake, message schema.MessageSend) (*schema.Message, error)
}

// bot holds the handlers and the little state they share: the bot's
// own user id and each guild's welcome channel.
type bot struct {
	client messenger
	logger *slog.Logger

	mu       sync.Mutex
	self     schema.Snowflake
	welcomes map[schema.Snowflake]schema.Snowflake
}

func newBot(client messenger, logger *slog.Logger) *bot {
	return &bot{
		client:   client,
		logger:   logger,
		welcomes: make(map[schema.Snowflake]schema.Snowflake),
	}
}

func (b *bot) register(g *gateway.Gateway) {
	gateway.On(g, b.onReady)
	gateway.On(g, b.onGuildCreate)
	gateway.On(g, b.onGuildDelete)
	gateway.On(g, b.onMessageCreate)
	gateway.On(g, b.onMemberAdd)
	gateway.On(g, b.onSessionInvalidated)
}

func (b *bot) onReady(ctx context.Context, ready *gateway.Ready) {
	b.mu.Lock()
	b.self = ready.User.ID
	b.mu.Unlock()
	b.logger.Info("logged in", "user", ready.User.Username, "guilds", len(ready.Guilds))
}

func (b *bot) onGuildCreate(ctx context.Context, guild *gateway.GuildCreate) {
	channel, ok := welcomeChannel(guild.Channels)
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.welcomes[guild.ID] = channel
	} else {
		delete(b.welcomes, guild.ID)
	}
}

func (b *bot) onGuildDelete(ctx context.Context, guild *gateway.GuildDelete) {
	if guild.Unavailable {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.welcomes, guild.ID)
}

func (b *bot) onMessageCreate(ctx context.Context, message *gateway.MessageCreate) {
	b.mu.Lock()
	self := b.self
	b.mu.Unlock()
	if message.Author.ID == self || message.Author.Bot {
		return
	}
	if strings.TrimSpace(message.Content) != "!ping" {
		return
	}
	reply := schema.MessageSend{
		Content:          "Pong!",
		MessageReference: &schema.MessageReference{MessageID: message.ID},
	}
	if _, err := b.client.CreateMessage(ctx, message.ChannelID, reply); err != nil {
		b.logger.Warn("replying to ping failed", "channel_id", message.ChannelID, "error", err)
	}
}

func (b *bot) onMemberAdd(ctx context.Context, member *gateway.GuildMemberAdd) {
	if member.User == nil || member.User.Bot {
		return
	}
	b.mu.Lock()
	channel, ok := b.welcomes[member.GuildID]
	b.mu.Unlock()
	if !ok {
		return
	}
	welcome := schema.MessageSend{Content: "Welcome, " + member.User.Mention() + "!"}
	if _, err := b.client.CreateMessage(ctx, channel, welcome); err != nil {
		b.logger.Warn("sending welcome failed", "guild_id", member.GuildID, "error", err)
	}
}

func (b *bot) onSessionInvalidated(ctx context.Context, event *gateway.SessionInvalidated) {
	b.logger.Warn("gateway session invalidated; identifying again", "resumable", event.Resumable)
}

// welcomeChannel picks the lowest-positioned text channel.
func welcomeChannel(channels []schema.Channel) (schema.Snowflake, bool) {
	var best *schema.Channel
	for i := range channels {
		channel := &channels[i]
		if channel.Type != schema.ChannelTypeGuildText {
			continue
		}
		if best == nil || channel.Position < best.Position {
			best = channel
		}
	}
	if best == nil {
		return 0, false
	}
	return best.ID, true
}
