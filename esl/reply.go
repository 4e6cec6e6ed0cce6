package esl

import (
	"strconv"
	"strings"
)

// Reply is a non-event frame: the banner, a command/reply, an api/response
// or a disconnect notice.
type Reply struct {
	Headers map[string]string
	Body    string // Content-Length bytes following the headers, if any
	Raw     string // The header frame as received
}

// ReplyHandler receives the non-event frames read by the dispatch loop.
type ReplyHandler func(Reply)

// ParseReply parses a header frame of "Key: Value" lines. Lines without a
// colon are ignored.
func ParseReply(frame string) Reply {
	reply := Reply{
		Headers: make(map[string]string),
		Raw:     frame,
	}
	for _, line := range strings.Split(frame, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		reply.Headers[key] = strings.TrimSpace(value)
	}
	return reply
}

// Header returns the value of a header, or "" if it is absent.
func (r Reply) Header(key string) string {
	return r.Headers[key]
}

// ContentType returns the Content-Type header.
func (r Reply) ContentType() string {
	return r.Headers["Content-Type"]
}

// ReplyText returns the Reply-Text header.
func (r Reply) ReplyText() string {
	return r.Headers["Reply-Text"]
}

// ContentLength returns the declared body length. ok is false when the header
// is missing or not a non-negative integer.
func (r Reply) ContentLength() (n int, ok bool) {
	value, present := r.Headers["Content-Length"]
	if !present {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Text returns the most meaningful text of the reply: Reply-Text, then the
// body, then the raw frame.
func (r Reply) Text() string {
	if text := r.ReplyText(); text != "" {
		return text
	}
	if body := strings.TrimSpace(r.Body); body != "" {
		return body
	}
	return strings.TrimSpace(r.Raw)
}

// IsOK returns true if the reply text starts with +OK.
func (r Reply) IsOK() bool {
	return strings.HasPrefix(r.Text(), OKMarker)
}

// IsError returns true if the reply text starts with -ERR.
func (r Reply) IsError() bool {
	return strings.HasPrefix(r.Text(), ErrMarker)
}
