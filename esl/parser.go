package esl

import (
	"fmt"
	"strings"
)

// CommandPrefix starts a console control command such as "/event".
// Lines without it are sent as api commands.
const CommandPrefix = "/"

// ParseError represents an error that occurred while parsing console input.
type ParseError struct {
	Kind    ParseErrorKind
	Value   string // The input that caused the error
	Message string // Additional context
}

// ParseErrorKind categorizes parsing errors.
type ParseErrorKind int

const (
	// ErrKindEmptyCommand indicates a blank line.
	ErrKindEmptyCommand ParseErrorKind = iota
	// ErrKindUnknownCommand indicates an unknown slash command.
	ErrKindUnknownCommand
	// ErrKindMissingArgument indicates a required argument was not provided.
	ErrKindMissingArgument
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	switch e.Kind {
	case ErrKindEmptyCommand:
		return "empty command"
	case ErrKindUnknownCommand:
		return fmt.Sprintf("unknown command '%s'", e.Value)
	case ErrKindMissingArgument:
		return e.Message
	default:
		return fmt.Sprintf("parse error: %s", e.Value)
	}
}

func newUnknownCommandError(cmd string) error {
	return &ParseError{Kind: ErrKindUnknownCommand, Value: cmd}
}

func newMissingArgumentError(msg string) error {
	return &ParseError{Kind: ErrKindMissingArgument, Message: msg}
}

// CommandParser turns console input lines into Commands.
type CommandParser struct{}

// NewCommandParser creates a new command parser.
func NewCommandParser() *CommandParser {
	return &CommandParser{}
}

// Parse parses one line of console input.
//
//	status                    -> api status
//	/api show calls           -> api show calls
//	/bgapi originate ...      -> bgapi originate ...
//	/event HEARTBEAT          -> event json HEARTBEAT
//	/event                    -> event json all
//	/nixevent HEARTBEAT       -> nixevent HEARTBEAT
//	/noevents                 -> noevents
//	/filter Unique-ID abc     -> filter Unique-ID abc
//	/filter delete Unique-ID  -> filter delete Unique-ID
//	/log debug                -> log debug
//	/nolog                    -> nolog
//	/exit, /quit, /bye        -> exit
func (p *CommandParser) Parse(line string) (Command, error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return Command{}, &ParseError{Kind: ErrKindEmptyCommand}
	}
	if !strings.HasPrefix(text, CommandPrefix) {
		return NewAPICommand(text), nil
	}

	word, rest, _ := strings.Cut(text[len(CommandPrefix):], " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(word) {
	case "exit", "quit", "bye":
		return NewExitCommand(), nil
	case "api":
		if rest == "" {
			return Command{}, newMissingArgumentError("api requires a command")
		}
		return NewAPICommand(rest), nil
	case "bgapi":
		if rest == "" {
			return Command{}, newMissingArgumentError("bgapi requires a command")
		}
		return NewBgAPICommand(rest), nil
	case "event":
		if len(args) == 1 && strings.EqualFold(args[0], "all") {
			return NewEventCommand(), nil
		}
		return NewEventCommand(args...), nil
	case "nixevent":
		if len(args) == 0 {
			return Command{}, newMissingArgumentError("nixevent requires at least one event name")
		}
		return NewNixEventCommand(args...), nil
	case "noevents":
		return NewNoEventsCommand(), nil
	case "filter":
		return p.parseFilter(args)
	case "log":
		if len(args) == 0 {
			return NewLogCommand(""), nil
		}
		return NewLogCommand(args[0]), nil
	case "nolog":
		return NewNoLogCommand(), nil
	default:
		return Command{}, newUnknownCommandError(word)
	}
}

func (p *CommandParser) parseFilter(args []string) (Command, error) {
	if len(args) > 0 && strings.EqualFold(args[0], "delete") {
		switch len(args) {
		case 1:
			return Command{}, newMissingArgumentError("filter delete requires a header")
		case 2:
			return NewFilterDeleteCommand(args[1], ""), nil
		default:
			return NewFilterDeleteCommand(args[1], strings.Join(args[2:], " ")), nil
		}
	}
	if len(args) < 2 {
		return Command{}, newMissingArgumentError("filter requires a header and a value")
	}
	return NewFilterCommand(args[0], strings.Join(args[1:], " ")), nil
}
