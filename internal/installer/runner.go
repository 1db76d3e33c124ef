package installer

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/farfarfun/funinstall/internal/logger"
)

// Command is an external process to run.
type Command struct {
	Name string
	Args []string
	// Env is the complete environment; nil inherits the current one.
	Env []string
	Dir string
	// Interactive connects the terminal's stdin and streams output live.
	Interactive bool
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes commands and returns their combined output.
type Runner interface {
	Run(ctx context.Context, c Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = c.Env
	cmd.Dir = c.Dir
	logger.Debug("[DEBUG] Running command: %s\n", c)

	var buf bytes.Buffer
	if c.Interactive || logger.DebugEnabled() {
		cmd.Stdout = io.MultiWriter(&buf, os.Stdout)
		cmd.Stderr = io.MultiWriter(&buf, os.Stderr)
	} else {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}
	if c.Interactive {
		cmd.Stdin = os.Stdin
	}

	err := cmd.Run()
	return buf.Bytes(), err
}
