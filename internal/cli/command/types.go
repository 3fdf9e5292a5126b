package command

import (
	"fmt"
	"os"
)

// BodyKind selects how a command's request body is built.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodySubmission
)

// Arg is one positional argument. File args are read from disk.
type Arg struct {
	Name string
	File bool
}

// Command defines a CLI command binding.
type Command struct {
	Name         string
	Summary      string
	Method       string
	PathTemplate string
	Args         []Arg
	Body         BodyKind
}

// Usage renders "name <arg> ...".
func (c Command) Usage() string {
	usage := c.Name
	for _, arg := range c.Args {
		usage += " <" + arg.Name + ">"
	}
	return usage
}

// RequestSpec is the built HTTP request.
type RequestSpec struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return string(data), nil
}
