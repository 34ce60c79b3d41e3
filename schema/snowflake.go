// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Snowflake is a platform identifier. It marshals to and from a JSON
// string ("175928847299117063").
type Snowflake = snowflake.ID

// Epoch is the platform's snowflake epoch, 2015-01-01T00:00:00Z, in
// milliseconds since the Unix epoch.
const Epoch int64 = 1420070400000

// CreatedAt returns the creation time encoded in id's timestamp bits.
func CreatedAt(id Snowflake) time.Time {
	return time.UnixMilli((id.Int64() >> 22) + Epoch).UTC()
}

// ParseSnowflake parses a decimal identifier.
func ParseSnowflake(value string) (Snowflake, error) {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return Snowflake(parsed), nil
}
