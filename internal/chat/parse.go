package chat

import (
	"encoding/json"
	"strings"

	"github.com/faraday/faraday/pkg/protocol"
)

// ParseModelOutput interprets the model's reply. A JSON object becomes the
// response as-is; anything else, whitespace included, becomes a plain
// message carrying the raw text. Only an empty reply maps to MsgNoResponse.
// The boolean reports whether the reply parsed.
func ParseModelOutput(raw string) (protocol.ChatResponse, bool) {
	if raw == "" {
		return protocol.ChatResponse{Message: MsgNoResponse}, false
	}

	var resp protocol.ChatResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &resp); err != nil {
		return protocol.ChatResponse{Message: raw}, false
	}

	files := resp.Files[:0]
	for _, f := range resp.Files {
		if f.Path == "" {
			continue
		}
		files = append(files, f)
	}
	resp.Files = files
	if len(resp.Files) == 0 {
		resp.Files = nil
	}
	return resp, true
}

// stripFences removes a surrounding ``` or ```json fence some models add
// despite being told not to.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return s
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 && !strings.ContainsAny(t[:i], "{[") {
		t = t[i+1:]
	}
	return strings.TrimSpace(t)
}
