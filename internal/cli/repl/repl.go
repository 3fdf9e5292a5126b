package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dailycode/internal/cli/command"
	httpclient "dailycode/internal/cli/http"
	"dailycode/internal/cli/state"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
)

const prompt = "verify> "

// Session holds REPL state.
type Session struct {
	client      *httpclient.Client
	commands    map[string]command.Command
	tokenState  *state.TokenState
	statePath   string
	historyFile string
	prettyJSON  bool
	out         io.Writer
}

func New(client *httpclient.Client, commands map[string]command.Command, tokenState *state.TokenState, statePath, historyFile string, prettyJSON bool) *Session {
	return &Session{
		client:      client,
		commands:    commands,
		tokenState:  tokenState,
		statePath:   statePath,
		historyFile: historyFile,
		prettyJSON:  prettyJSON,
		out:         os.Stdout,
	}
}

// SetOutput redirects everything the session prints.
func (s *Session) SetOutput(w io.Writer) {
	s.out = w
}

// Run reads lines until exit, EOF or an interrupt on an empty line.
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       s.historyFile,
		AutoComplete:      s.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer func() { _ = rl.Close() }()
	s.out = rl.Stdout()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}
		quit, err := s.Execute(ctx, line)
		if err != nil {
			s.printLine("error: %v", err)
		}
		if quit {
			return nil
		}
	}
}

func (s *Session) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("token"), readline.PcItem("timeout"), readline.PcItem("user")),
		readline.PcItem("show", readline.PcItem("config"), readline.PcItem("token")),
	}
	for _, name := range command.Names(s.commands) {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// Execute runs one input line. quit reports an exit request.
func (s *Session) Execute(ctx context.Context, line string) (quit bool, err error) {
	tokens, err := shlex.Split(strings.TrimSpace(line))
	if err != nil {
		return false, fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) == 0 {
		return false, nil
	}
	switch tokens[0] {
	case "exit", "quit":
		s.printLine("bye")
		return true, nil
	case "help":
		s.printHelp()
		return false, nil
	case "set":
		return false, s.handleSet(tokens[1:])
	case "show":
		return false, s.handleShow(tokens[1:])
	}

	cmd, ok := s.commands[tokens[0]]
	if !ok {
		return false, fmt.Errorf("unknown command: %s (try help)", tokens[0])
	}
	req, err := command.BuildRequest(cmd, tokens[1:])
	if err != nil {
		return false, err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return false, err
	}
	s.renderResponse(resp)
	return false, nil
}

func (s *Session) handleSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set base|token|timeout|user <value>")
	}
	value := args[1]
	switch args[0] {
	case "base":
		s.client.SetBaseURL(value)
		s.printLine("base set to %s", s.client.BaseURL())
		return nil
	case "timeout":
		dur, err := time.ParseDuration(value)
		if err != nil || dur <= 0 {
			return fmt.Errorf("invalid duration: %s", value)
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
		return nil
	case "token":
		s.tokenState.AccessToken = value
	case "user":
		s.tokenState.UserID = value
	default:
		return fmt.Errorf("unknown set target: %s", args[0])
	}
	if err := state.Save(s.statePath, *s.tokenState); err != nil {
		return err
	}
	s.printLine("%s updated", args[0])
	return nil
}

func (s *Session) handleShow(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show config|token")
	}
	switch args[0] {
	case "token":
		token := s.tokenState.AccessToken
		if token == "" {
			s.printLine("token: <empty>")
			return nil
		}
		if len(token) > 12 {
			token = token[:6] + "..." + token[len(token)-4:]
		}
		s.printLine("token: %s", token)
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("timeout: %s", s.client.Timeout())
		s.printLine("user: %s", s.tokenState.UserID)
		s.printLine("statePath: %s", s.statePath)
	default:
		return fmt.Errorf("usage: show config|token")
	}
	return nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration.Round(time.Millisecond))
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) printHelp() {
	s.printLine("commands:")
	for _, name := range command.Names(s.commands) {
		cmd := s.commands[name]
		s.printLine("  %-40s %s", cmd.Usage(), cmd.Summary)
	}
	s.printLine("system: help | exit | set base|token|timeout|user <value> | show config|token")
	s.printLine("example: verify two-sum python ./solution.py")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
}
