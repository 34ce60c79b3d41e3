// Copyright 2026 The Rapture Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// DefaultTokenType is the authorization scheme for bot accounts.
const DefaultTokenType = "Bot"

// knownTokenTypes are the authorization schemes the API accepts. A
// token file holding only one of these words is missing its token.
var knownTokenTypes = []string{DefaultTokenType, "Bearer"}

// ReadToken reads a token from path, or from stdin when path is "-".
// Surrounding whitespace is trimmed. A leading "<type> " prefix (for
// example "Bot " or "Bearer ") is split off and returned as the token
// type; without one, DefaultTokenType is returned. The caller owns the
// returned Buffer.
func ReadToken(path string) (string, *Buffer, error) {
	var data []byte
	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", nil, fmt.Errorf("secret: reading stdin: %w", err)
			}
			return "", nil, fmt.Errorf("secret: stdin is empty")
		}
		data = bytes.Clone(scanner.Bytes())
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("secret: reading token: %w", err)
		}
	}
	defer Zero(data)
	return ParseToken(data)
}

// ReadTokenFrom is ReadToken over an arbitrary reader.
func ReadTokenFrom(reader io.Reader) (string, *Buffer, error) {
	data, err := io.ReadAll(io.LimitReader(reader, 4096))
	if err != nil {
		return "", nil, fmt.Errorf("secret: reading token: %w", err)
	}
	defer Zero(data)
	return ParseToken(data)
}

// ParseToken splits "<type> <token>" and copies the token into a
// protected Buffer. data is left untouched; callers zero it. A lone
// scheme word ("Bot", "Bearer") is rejected rather than taken as the
// token itself.
func ParseToken(data []byte) (string, *Buffer, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", nil, fmt.Errorf("secret: token is empty")
	}

	tokenType := DefaultTokenType
	if space := bytes.IndexFunc(trimmed, unicode.IsSpace); space >= 0 {
		tokenType = string(trimmed[:space])
		trimmed = bytes.TrimSpace(trimmed[space+1:])
	} else if isTokenType(trimmed) {
		return "", nil, fmt.Errorf("secret: token type %q has no token", trimmed)
	}

	buffer, err := NewFromBytes(bytes.Clone(trimmed))
	if err != nil {
		return "", nil, err
	}
	return tokenType, buffer, nil
}

func isTokenType(word []byte) bool {
	for _, known := range knownTokenTypes {
		if strings.EqualFold(string(word), known) {
			return true
		}
	}
	return false
}
