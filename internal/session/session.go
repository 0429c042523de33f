// Package session extracts the GDB session token from tool-call responses.
//
// The server reports the session identifier inside human-readable prose
// rather than a structured field, e.g.:
//
//	GDB session started successfully.
//
//	Session ID: a1b2c3d4
//	GDB Path: /usr/bin/gdb
//
// That shape is owned by the server, so extraction stays a marker-line scan
// on purpose. If the marker appears on several lines, the first wins; text
// with no marker yields not-found, never a guessed value.
package session

import (
	"encoding/json"
	"strings"

	"github.com/wagiedev/gdbprobe/internal/errors"
)

// IDMarker is the label the server prints in front of the session token.
const IDMarker = "Session ID:"

// ExtractID scans text line by line for IDMarker and returns the trimmed
// remainder of the first matching line.
func ExtractID(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		idx := strings.Index(line, IDMarker)
		if idx < 0 {
			continue
		}

		return strings.TrimSpace(line[idx+len(IDMarker):]), true
	}

	return "", false
}

// toolResult is the server's tool-call result shape: a sequence of content
// blocks, of which only text blocks matter here.
type toolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// FirstText returns the text of the first text content block in a tool-call
// result payload.
func FirstText(result json.RawMessage) (string, error) {
	var tr toolResult
	if err := json.Unmarshal(result, &tr); err != nil {
		return "", err
	}

	for _, block := range tr.Content {
		if block.Type == "text" || block.Type == "" {
			return block.Text, nil
		}
	}

	return "", errors.ErrNoTextContent
}
