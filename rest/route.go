// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"strings"
)

// majorParameters maps a top-level resource to the placeholder of its
// id. The id after one of these resources is a major parameter: the
// server keeps separate buckets per value.
var majorParameters = map[string]string{
	"channels": ":channel_id",
	"guilds":   ":guild_id",
	"webhooks": ":webhook_id",
}

// ParseRoute derives the rate-limit route shape and major parameter
// value from a request path. Numeric id segments become ":id"; the id
// after a leading channels, guilds, or webhooks segment is named for
// its resource and returned as the major id. Webhook tokens and
// reaction emoji are also replaced, since they never change the bucket.
//
//	ParseRoute("GET", "/channels/81384788765712384/messages/1")
//	  = "GET /channels/:channel_id/messages/:id", "81384788765712384"
func ParseRoute(method, path string) (route, majorID string) {
	if query := strings.IndexByte(path, '?'); query >= 0 {
		path = path[:query]
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")

	for index, segment := range segments {
		switch {
		case index == 1 && majorParameters[segments[0]] != "" && isID(segment):
			majorID = segment
			segments[index] = majorParameters[segments[0]]
		case index == 2 && segments[0] == "webhooks" && majorID != "" && segment != "messages":
			segments[index] = ":token"
		case index > 0 && segments[index-1] == "reactions":
			segments[index] = ":emoji"
		case isID(segment):
			segments[index] = ":id"
		}
	}

	return method + " /" + strings.Join(segments, "/"), majorID
}

func isID(segment string) bool {
	if segment == "" {
		return false
	}
	for _, character := range segment {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
