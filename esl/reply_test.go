package esl

import "testing"

func TestParseReply(t *testing.T) {
	frame := "Content-Type: command/reply\nReply-Text: +OK accepted\nX-Odd:  padded  \nno colon here\n\n"
	reply := ParseReply(frame)

	if reply.ContentType() != ContentTypeCommandReply {
		t.Errorf("ContentType() = %q", reply.ContentType())
	}
	if reply.ReplyText() != "+OK accepted" {
		t.Errorf("ReplyText() = %q", reply.ReplyText())
	}
	if reply.Header("X-Odd") != "padded" {
		t.Errorf("X-Odd = %q", reply.Header("X-Odd"))
	}
	if len(reply.Headers) != 3 {
		t.Errorf("got %d headers: %v", len(reply.Headers), reply.Headers)
	}
	if reply.Raw != frame {
		t.Errorf("Raw = %q", reply.Raw)
	}
}

func TestReplyContentLength(t *testing.T) {
	tests := []struct {
		value  string
		want   int
		wantOK bool
	}{
		{"42", 42, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		reply := ParseReply("Content-Length: " + tt.value + "\n\n")
		n, ok := reply.ContentLength()
		if n != tt.want || ok != tt.wantOK {
			t.Errorf("ContentLength(%q) = %d, %v; want %d, %v", tt.value, n, ok, tt.want, tt.wantOK)
		}
	}

	if _, ok := ParseReply("Content-Type: api/response\n\n").ContentLength(); ok {
		t.Error("missing Content-Length reported ok")
	}
}

func TestReplyText(t *testing.T) {
	tests := []struct {
		name    string
		reply   Reply
		want    string
		wantOK  bool
		wantErr bool
	}{
		{
			name:   "reply text",
			reply:  ParseReply("Content-Type: command/reply\nReply-Text: +OK bye\n\n"),
			want:   "+OK bye",
			wantOK: true,
		},
		{
			name:    "body",
			reply:   Reply{Headers: map[string]string{}, Body: "-ERR no such command\n"},
			want:    "-ERR no such command",
			wantErr: true,
		},
		{
			name:  "raw",
			reply: ParseReply("Content-Type: text/disconnect-notice\n\n"),
			want:  "Content-Type: text/disconnect-notice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reply.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
			if got := tt.reply.IsOK(); got != tt.wantOK {
				t.Errorf("IsOK() = %v", got)
			}
			if got := tt.reply.IsError(); got != tt.wantErr {
				t.Errorf("IsError() = %v", got)
			}
		})
	}
}
