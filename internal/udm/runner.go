package udm

import (
	"context" // context cancels a running tool
	"errors"  // errors tells row failures apart from fatal ones
	"fmt"     // fmt is used to create readable error messages
	"io"      // io is where dry runs print their commands
	"os/exec" // exec runs the directory tool
	"strconv" // strconv quotes arguments for display
	"strings" // strings joins and trims command text

	"cdr.dev/slog/v3"         // slog is the structured logger
	"github.com/cli/safeexec" // safeexec resolves the tool without searching the current directory
)

///////////////////////////////////////////////////////////////////////////////
// Errors
///////////////////////////////////////////////////////////////////////////////

// ErrRowFailed marks an error that concerns a single row. The import counts
// the row as failed and moves on; any other error stops the run.
var ErrRowFailed = errors.New("row failed")

// ExitError is returned by a Runner when the tool ran and exited non-zero.
type ExitError struct {
	Code   int
	Output string
}

// NewExitError is an initializer function for ExitError. Output is trimmed.
func NewExitError(code int, output []byte) *ExitError {
	return &ExitError{Code: code, Output: strings.TrimSpace(string(output))}
}

// Error includes the tool's output, which usually names the problem.
func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("directory tool exited with status %d", e.Code)
	}
	return fmt.Sprintf("directory tool exited with status %d: %s", e.Code, e.Output)
}

// Is makes errors.Is(err, ErrRowFailed) true for exit errors.
func (e *ExitError) Is(target error) bool {
	return target == ErrRowFailed
}

///////////////////////////////////////////////////////////////////////////////
// Runners
///////////////////////////////////////////////////////////////////////////////

// Runner invokes the directory tool with args and waits for it.
type Runner interface {
	Run(ctx context.Context, args []string) ([]byte, error)
}

// ExecRunner runs the tool as a subprocess.
type ExecRunner struct {
	Path string // Path is the resolved location of the tool
}

// NewExecRunner resolves tool on $PATH. A tool that cannot be found or is
// not executable means no row can succeed, so the error is fatal.
func NewExecRunner(tool string) (*ExecRunner, error) {
	// safeexec does not resolve names against the current directory.
	path, err := safeexec.LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("failed to find directory tool %q: %w", tool, err)
	}
	return &ExecRunner{Path: path}, nil
}

// Run returns the combined output of the tool. A non-zero exit is an
// *ExitError; failing to start the tool is returned as is.
func (r *ExecRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, NewExitError(exitErr.ExitCode(), out)
	}
	return out, fmt.Errorf("failed to run %s: %w", r.Path, err)
}

// DryRunRunner prints each command instead of running it.
type DryRunRunner struct {
	Tool string
	Out  io.Writer
}

// NewDryRunRunner returns a runner that writes commands for tool to out.
func NewDryRunRunner(tool string, out io.Writer) *DryRunRunner {
	return &DryRunRunner{Tool: tool, Out: out}
}

// Run prints the command line and reports success without running anything.
func (r *DryRunRunner) Run(_ context.Context, args []string) ([]byte, error) {
	if _, err := fmt.Fprintln(r.Out, FormatCommand(r.Tool, args)); err != nil {
		return nil, fmt.Errorf("failed to write command: %w", err)
	}
	return nil, nil
}

// FormatCommand renders a command line for display, quoting arguments that
// a shell would split.
func FormatCommand(tool string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, s := range append([]string{tool}, args...) {
		if s == "" || strings.ContainsAny(s, " \t\n'\"\\$`") {
			s = strconv.Quote(s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

///////////////////////////////////////////////////////////////////////////////
// Executor
///////////////////////////////////////////////////////////////////////////////

// Executor applies changes by running the directory tool once per change.
type Executor struct {
	Tool    string
	Runner  Runner
	Builder *CommandBuilder
	Logger  slog.Logger
}

// NewExecutor wires a runner and a command builder together.
func NewExecutor(tool string, runner Runner, builder *CommandBuilder, logger slog.Logger) *Executor {
	if builder == nil {
		builder = NewCommandBuilder()
	}
	return &Executor{
		Tool:    tool,
		Runner:  runner,
		Builder: builder,
		Logger:  logger.Named("udm"),
	}
}

// Apply runs the tool for change. Errors that only concern this change
// match ErrRowFailed.
func (e *Executor) Apply(ctx context.Context, change Change) error {
	args, err := e.Builder.Args(change)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRowFailed, err)
	}

	e.Logger.Debug(ctx, "running directory tool",
		slog.F("line", change.Line),
		slog.F("command", FormatCommand(e.Tool, args)),
	)
	out, err := e.Runner.Run(ctx, args)
	if len(out) > 0 {
		e.Logger.Debug(ctx, "directory tool output",
			slog.F("line", change.Line),
			slog.F("output", strings.TrimSpace(string(out))),
		)
	}
	return err
}
