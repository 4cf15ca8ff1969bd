// Package cursor implements the opaque pagination token shared by
// ListMessages and ListConversations: URL-safe base64 (padding
// stripped) of "<ISO-8601 timestamp>|<identifier>".
package cursor

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Encode produces the opaque token for (t, id).
func Encode(t time.Time, id string) string {
	raw := fmt.Sprintf("%s|%s", t.UTC().Format(time.RFC3339Nano), id)
	enc := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(raw))
	return enc
}

// Decode restores (t, id) from a token produced by Encode.
func Decode(token string) (time.Time, string, error) {
	padded := token + strings.Repeat("=", (4-len(token)%4)%4)
	raw, err := base64.URLEncoding.DecodeString(padded)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("cursor: invalid encoding: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("cursor: malformed token")
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("cursor: invalid timestamp: %w", err)
	}
	return t, parts[1], nil
}
