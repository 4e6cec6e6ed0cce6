package esl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// jsonObjectPattern greedily matches the outermost braces on a single line.
var jsonObjectPattern = regexp.MustCompile(`\{.*\}`)

// Event is a decoded server event.
type Event struct {
	// Headers holds the event's fields. Event-Name routes the event.
	Headers map[string]string

	// Body is the raw text the event was decoded from.
	Body string

	// ContentLength is the declared body length, or 0 for bare JSON frames.
	ContentLength int
}

// Decoder builds an Event from decoded headers, the raw body and the declared
// content length. It must not retain headers beyond the returned Event.
type Decoder func(headers map[string]string, body string, contentLength int) Event

// DecodeEvent is the default Decoder.
func DecodeEvent(headers map[string]string, body string, contentLength int) Event {
	return Event{
		Headers:       headers,
		Body:          body,
		ContentLength: contentLength,
	}
}

// Name returns the Event-Name header.
func (e Event) Name() string {
	return e.Headers[EventNameHeader]
}

// Header returns the value of a header, or "" if it is absent.
func (e Event) Header(key string) string {
	return e.Headers[key]
}

// looksLikeJSON reports whether the frame's first non-whitespace byte opens
// a JSON object.
func looksLikeJSON(frame string) bool {
	return strings.HasPrefix(strings.TrimLeft(frame, " \t\r\n"), "{")
}

// extractHeaders pulls the JSON object out of a frame and flattens it into a
// string map.
func extractHeaders(frame string) (map[string]string, error) {
	match := jsonObjectPattern.FindString(frame)
	if match == "" {
		return nil, fmt.Errorf("%w: no JSON object", ErrMalformedFrame)
	}
	return parseHeaders(match)
}

// parseHeaders decodes a JSON object into header strings. Non-string values
// keep their JSON text, so numbers are not reformatted.
func parseHeaders(text string) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	headers := make(map[string]string, len(raw))
	for key, value := range raw {
		headers[key] = headerValue(value)
	}
	return headers, nil
}

func headerValue(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	return string(trimmed)
}
