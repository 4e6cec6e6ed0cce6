package esl

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	parser := NewCommandParser()

	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"bare line is api", "status", NewAPICommand("status")},
		{"bare line trimmed", "  show calls  ", NewAPICommand("show calls")},
		{"api", "/api show channels", NewAPICommand("show channels")},
		{"bgapi", "/bgapi originate user/1000 &park", NewBgAPICommand("originate user/1000 &park")},
		{"event all", "/event all", NewEventCommand()},
		{"event empty", "/event", NewEventCommand()},
		{"event names", "/event HEARTBEAT API", NewEventCommand("HEARTBEAT", "API")},
		{"nixevent", "/nixevent HEARTBEAT", NewNixEventCommand("HEARTBEAT")},
		{"noevents", "/noevents", NewNoEventsCommand()},
		{"filter", "/filter Event-Name HEARTBEAT", NewFilterCommand("Event-Name", "HEARTBEAT")},
		{"filter value with spaces", "/filter Caller-Caller-ID-Name John Doe", NewFilterCommand("Caller-Caller-ID-Name", "John Doe")},
		{"filter delete header", "/filter delete Event-Name", NewFilterDeleteCommand("Event-Name", "")},
		{"filter delete value", "/filter delete Event-Name HEARTBEAT", NewFilterDeleteCommand("Event-Name", "HEARTBEAT")},
		{"log", "/log", NewLogCommand("")},
		{"log level", "/log debug", NewLogCommand("debug")},
		{"nolog", "/nolog", NewNoLogCommand()},
		{"exit", "/exit", NewExitCommand()},
		{"quit", "/quit", NewExitCommand()},
		{"bye upper case", "/BYE", NewExitCommand()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got.Format() != tt.want.Format() || got.Type != tt.want.Type {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got.Format(), tt.want.Format())
			}
			if len(got.Args) != 0 || len(tt.want.Args) != 0 {
				if !reflect.DeepEqual(got.Args, tt.want.Args) {
					t.Errorf("Args = %q, want %q", got.Args, tt.want.Args)
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	parser := NewCommandParser()

	tests := []struct {
		input string
		kind  ParseErrorKind
		msg   string
	}{
		{"", ErrKindEmptyCommand, "empty command"},
		{"   ", ErrKindEmptyCommand, "empty command"},
		{"/frobnicate", ErrKindUnknownCommand, "unknown command 'frobnicate'"},
		{"/api", ErrKindMissingArgument, "api requires a command"},
		{"/bgapi  ", ErrKindMissingArgument, "bgapi requires a command"},
		{"/nixevent", ErrKindMissingArgument, "nixevent requires at least one event name"},
		{"/filter Event-Name", ErrKindMissingArgument, "filter requires a header and a value"},
		{"/filter delete", ErrKindMissingArgument, "filter delete requires a header"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parser.Parse(tt.input)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse(%q) error = %v, want *ParseError", tt.input, err)
			}
			if pe.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", pe.Kind, tt.kind)
			}
			if pe.Error() != tt.msg {
				t.Errorf("Error() = %q, want %q", pe.Error(), tt.msg)
			}
		})
	}
}
