package esl

import "strings"

// CommandType represents the type of event socket command.
type CommandType int

const (
	// Session commands
	CmdAuth CommandType = iota
	CmdExit

	// Subscription
	CmdEvent
	CmdNixEvent
	CmdNoEvents
	CmdFilter
	CmdFilterDelete

	// Switch API
	CmdAPI
	CmdBgAPI

	// Log forwarding
	CmdLog
	CmdNoLog

	// CmdRaw sends its argument verbatim.
	CmdRaw
)

// Command is an event socket request. Args hold the command-specific words.
type Command struct {
	Type CommandType
	Args []string
}

// NewAuthCommand creates an "auth <password>" command.
func NewAuthCommand(password string) Command {
	return Command{Type: CmdAuth, Args: []string{password}}
}

// NewExitCommand creates an "exit" command.
func NewExitCommand() Command {
	return Command{Type: CmdExit}
}

// NewEventCommand subscribes to JSON events. No names means all events.
func NewEventCommand(names ...string) Command {
	return Command{Type: CmdEvent, Args: names}
}

// NewNixEventCommand unsubscribes from the named events.
func NewNixEventCommand(names ...string) Command {
	return Command{Type: CmdNixEvent, Args: names}
}

// NewNoEventsCommand drops every event subscription.
func NewNoEventsCommand() Command {
	return Command{Type: CmdNoEvents}
}

// NewFilterCommand only passes events whose header equals value.
func NewFilterCommand(header, value string) Command {
	return Command{Type: CmdFilter, Args: []string{header, value}}
}

// NewFilterDeleteCommand removes a filter. An empty value removes every
// filter on the header.
func NewFilterDeleteCommand(header, value string) Command {
	args := []string{header}
	if value != "" {
		args = append(args, value)
	}
	return Command{Type: CmdFilterDelete, Args: args}
}

// NewAPICommand creates a blocking "api <command>" request.
func NewAPICommand(command string) Command {
	return Command{Type: CmdAPI, Args: []string{command}}
}

// NewBgAPICommand creates a background "bgapi <command>" request.
func NewBgAPICommand(command string) Command {
	return Command{Type: CmdBgAPI, Args: []string{command}}
}

// NewLogCommand enables log forwarding, optionally at a level.
func NewLogCommand(level string) Command {
	if level == "" {
		return Command{Type: CmdLog}
	}
	return Command{Type: CmdLog, Args: []string{level}}
}

// NewNoLogCommand disables log forwarding.
func NewNoLogCommand() Command {
	return Command{Type: CmdNoLog}
}

// NewRawCommand sends text as-is.
func NewRawCommand(text string) Command {
	return Command{Type: CmdRaw, Args: []string{text}}
}

// Format returns the command text without the frame terminator.
func (c Command) Format() string {
	switch c.Type {
	case CmdAuth:
		return "auth " + c.arg(0)
	case CmdExit:
		return "exit"
	case CmdEvent:
		if len(c.Args) == 0 {
			return "event json all"
		}
		return "event json " + strings.Join(c.Args, " ")
	case CmdNixEvent:
		return "nixevent " + strings.Join(c.Args, " ")
	case CmdNoEvents:
		return "noevents"
	case CmdFilter:
		return "filter " + strings.Join(c.Args, " ")
	case CmdFilterDelete:
		return "filter delete " + strings.Join(c.Args, " ")
	case CmdAPI:
		return "api " + c.arg(0)
	case CmdBgAPI:
		return "bgapi " + c.arg(0)
	case CmdLog:
		if len(c.Args) == 0 {
			return "log"
		}
		return "log " + c.arg(0)
	case CmdNoLog:
		return "nolog"
	case CmdRaw:
		return c.arg(0)
	default:
		return ""
	}
}

// Frame returns the command text followed by the frame terminator.
func (c Command) Frame() string {
	return c.Format() + FrameTerminator
}

// String returns the command text with the auth password masked, for logs.
func (c Command) String() string {
	if c.Type == CmdAuth {
		return "auth ********"
	}
	return c.Format()
}

func (c Command) arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}
