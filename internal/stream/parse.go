package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ParseData parses a single SSE data payload into an Envelope. The payload
// must be a JSON object carrying at least a type discriminator.
func ParseData(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("stream: parse message: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("stream: message has no type field")
	}
	env.Raw = append(json.RawMessage(nil), data...)
	env.ReceivedAt = time.Now().UTC()
	return env, nil
}

// readFrames scans newline-delimited SSE frames from r and invokes fn with
// each frame's data payload. Comment lines and event-name lines are consumed
// but not surfaced; the data JSON carries its own type discriminator.
// Returns the scanner error, or nil on clean EOF.
func readFrames(r io.Reader, fn func(data []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates a frame.
			if data.Len() > 0 {
				fn([]byte(data.String()))
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			// Multi-line data fields concatenate with newlines per the SSE spec.
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"), strings.HasPrefix(line, "id:"), strings.HasPrefix(line, ":"):
			// Consumed for framing only.
		}
	}
	if data.Len() > 0 {
		fn([]byte(data.String()))
	}
	return scanner.Err()
}
