package parser

import (
	"encoding/json"
	"strings"
)

// contentBlock is one element of a structured message content payload.
type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Content json.RawMessage `json:"content"`
}

// FlattenContent reduces a message content payload to plain text. Content may
// be a bare string, a list of content blocks, or a single block; blocks may
// nest further content. Strings pass through, "text" blocks contribute their
// text, blocks with nested content recurse, and anything else is stringified
// as its raw JSON. List results join with newline. Flattening an already-flat
// string is the identity.
func FlattenContent(raw json.RawMessage) string {
	if !present(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if part := FlattenContent(item); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, "\n")
	}

	var block contentBlock
	if err := json.Unmarshal(raw, &block); err == nil {
		if block.Type == "text" {
			return block.Text
		}
		if present(block.Content) {
			return FlattenContent(block.Content)
		}
	}

	return string(raw)
}

// hasToolResultBlock reports whether a content payload is a block list
// containing a tool_result block.
func hasToolResultBlock(raw json.RawMessage) bool {
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return false
	}
	for _, b := range blocks {
		if b.Type == "tool_result" {
			return true
		}
	}
	return false
}
