package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var submissionArgs = []Arg{{Name: "problem"}, {Name: "language"}, {Name: "file", File: true}}

// Registry returns all CLI commands keyed by name.
func Registry() map[string]Command {
	commands := []Command{
		{
			Name:         "verify",
			Summary:      "run tests and record the reward on a first pass",
			Method:       "POST",
			PathTemplate: "/api/v1/verify",
			Args:         submissionArgs,
			Body:         BodySubmission,
		},
		{
			Name:         "run",
			Summary:      "run tests without recording anything",
			Method:       "POST",
			PathTemplate: "/api/v1/run",
			Args:         submissionArgs,
			Body:         BodySubmission,
		},
		{
			Name:         "submit",
			Summary:      "queue an async verification",
			Method:       "POST",
			PathTemplate: "/api/v1/verify/async",
			Args:         submissionArgs,
			Body:         BodySubmission,
		},
		{
			Name:         "status",
			Summary:      "show an async submission",
			Method:       "GET",
			PathTemplate: "/api/v1/verify/submissions/:submission",
			Args:         []Arg{{Name: "submission"}},
		},
		{
			Name:         "hint",
			Summary:      "consume one hint from today's quota",
			Method:       "POST",
			PathTemplate: "/api/v1/hints/consume",
		},
		{
			Name:         "quota",
			Summary:      "show today's hint quota",
			Method:       "GET",
			PathTemplate: "/api/v1/hints/quota",
		},
		{
			Name:         "audit",
			Summary:      "show the archived trail of a verification",
			Method:       "GET",
			PathTemplate: "/api/v1/verify/audit/:problem/:submission",
			Args:         []Arg{{Name: "problem"}, {Name: "submission"}},
		},
	}
	out := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		out[cmd.Name] = cmd
	}
	return out
}

// Names lists command names in order.
func Names(commands map[string]Command) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildRequest binds positional args to cmd.
func BuildRequest(cmd Command, args []string) (RequestSpec, error) {
	if len(args) != len(cmd.Args) {
		return RequestSpec{}, fmt.Errorf("usage: %s", cmd.Usage())
	}
	values := make(map[string]string, len(args))
	for i, arg := range cmd.Args {
		value := strings.TrimSpace(args[i])
		if value == "" {
			return RequestSpec{}, fmt.Errorf("%s is required", arg.Name)
		}
		if arg.File {
			content, err := ReadFile(value)
			if err != nil {
				return RequestSpec{}, err
			}
			value = content
		}
		values[arg.Name] = value
	}

	path := cmd.PathTemplate
	for _, arg := range cmd.Args {
		placeholder := ":" + arg.Name
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(values[arg.Name]))
		}
	}

	var body []byte
	if cmd.Body == BodySubmission {
		payload := map[string]string{
			"problemId": values["problem"],
			"language":  values["language"],
			"code":      values["file"],
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request failed: %w", err)
		}
		body = data
	}
	return RequestSpec{Method: cmd.Method, Path: path, Body: body}, nil
}
