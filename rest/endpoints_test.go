// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rapture-chat/rapture/lib/clock"
	"github.com/rapture-chat/rapture/schema"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	reason string
	body   []byte
}

func recordingServer(t *testing.T, status int, response string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	recorded := &recordedRequest{}
	server := httptest.NewTLSServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		recorded.method = request.Method
		recorded.path = request.URL.EscapedPath()
		recorded.query = request.URL.RawQuery
		recorded.reason = request.Header.Get("X-Audit-Log-Reason")
		recorded.body, _ = io.ReadAll(request.Body)
		if status == http.StatusNoContent {
			writer.WriteHeader(status)
			return
		}
		writeJSON(writer, status, response)
	}))
	t.Cleanup(server.Close)
	return server, recorded
}

func TestGetGatewayBot(t *testing.T) {
	server, recorded := recordingServer(t, http.StatusOK, `{
		"url": "wss://gateway.discord.gg",
		"shards": 9,
		"session_start_limit": {"total": 1000, "remaining": 999, "reset_after": 14400000, "max_concurrency": 1}
	}`)
	client := newTestClient(t, server, clock.Real())

	info, err := client.GetGatewayBot(context.Background())
	if err != nil {
		t.Fatalf("GetGatewayBot: %v", err)
	}
	if recorded.path != "/gateway/bot" {
		t.Errorf("path = %q", recorded.path)
	}
	if info.URL != "wss://gateway.discord.gg" || info.Shards != 9 || info.SessionStartLimit.Remaining != 999 {
		t.Errorf("info = %+v", info)
	}
}

func TestCreateMessage(t *testing.T) {
	server, recorded := recordingServer(t, http.StatusOK, `{"id":"5","channel_id":"10","author":{"id":"1","username":"bot"},"content":"Pong!","timestamp":"2026-03-01T12:00:00Z"}`)
	client := newTestClient(t, server, clock.Real())

	message, err := client.CreateMessage(context.Background(), 10, schema.MessageSend{
		Content:          "Pong!",
		MessageReference: &schema.MessageReference{MessageID: 4},
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if recorded.method != http.MethodPost || recorded.path != "/channels/10/messages" {
		t.Errorf("request = %s %s", recorded.method, recorded.path)
	}

	var sent map[string]any
	if err := json.Unmarshal(recorded.body, &sent); err != nil {
		t.Fatalf("body: %v", err)
	}
	if sent["content"] != "Pong!" {
		t.Errorf("content = %v", sent["content"])
	}
	if reference, _ := sent["message_reference"].(map[string]any); reference["message_id"] != "4" {
		t.Errorf("message_reference = %v", sent["message_reference"])
	}
	if message.ID != 5 || message.Content != "Pong!" {
		t.Errorf("message = %+v", message)
	}
}

func TestGetChannelMessagesQuery(t *testing.T) {
	server, recorded := recordingServer(t, http.StatusOK, `[{"id":"2","channel_id":"10","author":{"id":"1","username":"a"},"content":"x","timestamp":"2026-03-01T12:00:00Z"}]`)
	client := newTestClient(t, server, clock.Real())

	messages, err := client.GetChannelMessages(context.Background(), 10, MessageQuery{Before: 99, Limit: 25})
	if err != nil {
		t.Fatalf("GetChannelMessages: %v", err)
	}
	if recorded.query != "before=99&limit=25" {
		t.Errorf("query = %q", recorded.query)
	}
	if len(messages) != 1 || messages[0].ID != 2 {
		t.Errorf("messages = %+v", messages)
	}
}

func TestCreateReactionEscapesEmoji(t *testing.T) {
	server, recorded := recordingServer(t, http.StatusNoContent, "")
	client := newTestClient(t, server, clock.Real())

	if err := client.CreateReaction(context.Background(), 1, 2, "👍"); err != nil {
		t.Fatalf("CreateReaction: %v", err)
	}
	if recorded.method != http.MethodPut {
		t.Errorf("method = %s", recorded.method)
	}
	if recorded.path != "/channels/1/messages/2/reactions/%F0%9F%91%8D/@me" {
		t.Errorf("path = %q", recorded.path)
	}
}

func TestRemoveGuildMemberReason(t *testing.T) {
	server, recorded := recordingServer(t, http.StatusNoContent, "")
	client := newTestClient(t, server, clock.Real())

	if err := client.RemoveGuildMember(context.Background(), 7, 8, "raid cleanup"); err != nil {
		t.Fatalf("RemoveGuildMember: %v", err)
	}
	if recorded.method != http.MethodDelete || recorded.path != "/guilds/7/members/8" {
		t.Errorf("request = %s %s", recorded.method, recorded.path)
	}
	if recorded.reason != "raid%20cleanup" {
		t.Errorf("reason = %q", recorded.reason)
	}
}

func TestChannelRouteShape(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"id":"3","type":0}`)
	client := newTestClient(t, server, clock.Real())

	if _, err := client.GetChannel(context.Background(), 3); err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	// No rate-limit headers were sent, so no bucket exists yet.
	route, major := channelRoute(http.MethodGet, "", 3)
	if route != "GET /channels/:channel_id" || major != "3" {
		t.Errorf("channelRoute = %q, %q", route, major)
	}
}
