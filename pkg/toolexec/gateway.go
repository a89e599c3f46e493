// Package toolexec runs external command line tools synchronously and
// captures their exit status and output.
package toolexec

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the outcome of one tool invocation
type Result struct {
	Name   string
	Args   []string
	Status int
	Stdout []byte
	Stderr []byte
}

// Success reports whether the tool exited with status 0
func (r *Result) Success() bool {
	return r != nil && r.Status == 0
}

// CommandLine renders the invocation for diagnostics
func (r *Result) CommandLine() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.Name + " " + strings.Join(r.Args, " "))
}

// String summarizes status and output, used in error messages
func (r *Result) String() string {
	if r == nil {
		return "<no result>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s exited with status %d", r.CommandLine(), r.Status)
	if out := strings.TrimSpace(string(r.Stdout)); out != "" {
		fmt.Fprintf(&b, "\nstdout: %s", out)
	}
	if out := strings.TrimSpace(string(r.Stderr)); out != "" {
		fmt.Fprintf(&b, "\nstderr: %s", out)
	}
	return b.String()
}

// Gateway invokes an external executable and waits for it to exit.
// A non-zero exit status is reported through Result.Status; the error
// return is reserved for failures to start or wait on the process.
type Gateway interface {
	Invoke(name string, args ...string) (*Result, error)
}

// Exec is the os/exec backed Gateway. There is no timeout: the caller
// blocks until the tool exits.
type Exec struct {
	// Dir is the working directory of spawned tools, empty for the
	// current directory
	Dir string
}

// Invoke runs name with args and captures stdout and stderr
func (e Exec) Invoke(name string, args ...string) (*Result, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = e.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := &Result{
		Name: name,
		Args: append([]string(nil), args...),
	}

	err := cmd.Run()
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Status = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}

	return result, nil
}
