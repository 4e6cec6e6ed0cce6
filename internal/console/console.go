// Package console implements the interactive event socket shell.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lurimax-north/freeswitch-esl/esl"
)

const prompt = "esl> "

const helpText = `Lines are sent as api commands (e.g. "status", "show calls").
Commands:
  /api <cmd>               blocking api command
  /bgapi <cmd>             background api command
  /event [all|names...]    subscribe to events
  /nixevent <names...>     unsubscribe from events
  /noevents                drop all subscriptions
  /filter <header> <value> filter events
  /filter delete <header> [value]
  /log [level]  /nolog     log forwarding
  /verbose                 toggle event header output
  /help                    show this help
  /exit                    leave`

// Console reads commands from a LineEditor, sends them on a session and
// prints the events and replies that come back.
type Console struct {
	editor *LineEditor
	parser *esl.CommandParser
	logger *zap.Logger

	mu      sync.Mutex // guards out and verbose
	out     io.Writer
	verbose bool
}

// New creates a Console writing to out.
func New(editor *LineEditor, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		editor: editor,
		parser: esl.NewCommandParser(),
		logger: logger,
		out:    out,
	}
}

// HandleReply prints a reply read by the dispatch loop. Pass it to the
// session with esl.WithReplyHandler.
func (c *Console) HandleReply(reply esl.Reply) {
	switch reply.ContentType() {
	case esl.ContentTypeAPIResponse:
		c.printf("%s\n", strings.TrimRight(reply.Body, "\n"))
	case esl.ContentTypeDisconnectNotice:
		c.printf("*** Disconnected: %s\n", reply.Text())
	default:
		c.printf("%s\n", reply.Text())
	}
}

// Run streams events from sess until the input ends, /exit is entered or the
// stream fails. The session must be initialized.
func (c *Console) Run(ctx context.Context, sess *esl.Session) error {
	st, err := sess.Stream(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	go c.printEvents(st)

	if c.editor.IsInteractive() {
		c.printf("Connected to %s. Type /help for commands.\n", sess.Addr())
	}

	for {
		line, err := c.editor.GetLine(prompt)
		if errors.Is(err, io.EOF) {
			c.printf("\n")
			return nil
		}
		if err != nil {
			return err
		}

		select {
		case <-st.Done():
			return st.Err()
		default:
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/help":
			c.printf("%s\n", helpText)
			continue
		case "/verbose":
			c.toggleVerbose()
			continue
		}

		cmd, err := c.parser.Parse(line)
		if err != nil {
			c.printf("Error: %v\n", err)
			continue
		}

		if err := sess.Send(cmd); err != nil {
			return err
		}
		c.logger.Debug("sent command", zap.Stringer("command", cmd))
		if cmd.Type == esl.CmdExit {
			return nil
		}
	}
}

func (c *Console) printEvents(st *esl.Stream) {
	for ev := range st.Events() {
		c.printEvent(ev)
	}
	if err := st.Err(); err != nil {
		c.printf("\n*** Stream ended: %v\n", err)
	}
}

func (c *Console) printEvent(ev esl.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "[EVENT] %s\n", ev.Name())
	if !c.verbose {
		return
	}
	keys := make([]string, 0, len(ev.Headers))
	for k := range ev.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.out, "  %s: %s\n", k, ev.Headers[k])
	}
}

func (c *Console) toggleVerbose() {
	c.mu.Lock()
	c.verbose = !c.verbose
	state := "off"
	if c.verbose {
		state = "on"
	}
	c.mu.Unlock()
	c.printf("Verbose event output %s\n", state)
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
