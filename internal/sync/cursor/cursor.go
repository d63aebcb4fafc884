// Package cursor provides opaque pagination token encoding/decoding for sync scans.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor represents the internal state of a scan pagination token.
type Cursor struct {
	// Offset is the number of rows already delivered for the current scan.
	Offset int `json:"offset"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	if c.Offset < 0 {
		return "", fmt.Errorf("negative cursor offset: %d", c.Offset)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}
	if c.Offset < 0 {
		return Cursor{}, fmt.Errorf("negative cursor offset: %d", c.Offset)
	}
	return c, nil
}
