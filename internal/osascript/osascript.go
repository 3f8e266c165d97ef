// Package osascript runs AppleScript through /usr/bin/osascript.
package osascript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Path is the osascript binary.
const Path = "/usr/bin/osascript"

// CodeNotAuthorized is the AppleScript error number for a refused
// automation or privacy permission.
const CodeNotAuthorized = -1743

// FieldSep separates fields in the line-oriented output scripts produce.
const FieldSep = "|||"

// Error is a failed script run. Code is the AppleScript error number when
// osascript reported one, otherwise zero.
type Error struct {
	Code   int
	Output string
	Err    error
}

// Error returns the formatted error message.
func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("osascript: %v", e.Err)
	}
	return fmt.Sprintf("osascript: %v: %s", e.Err, e.Output)
}

// Unwrap returns the process error.
func (e *Error) Unwrap() error {
	return e.Err
}

var errorNumber = regexp.MustCompile(`\((-?\d+)\)\s*$`)

// Runner runs a script given as lines with optional argv values.
type Runner func(ctx context.Context, lines []string, args []string) (string, error)

// Run executes lines as one script. args are passed to the script's
// run handler as argv.
func Run(ctx context.Context, lines []string, args []string) (string, error) {
	cmdArgs := make([]string, 0, len(lines)*2+len(args))
	for _, line := range lines {
		cmdArgs = append(cmdArgs, "-e", line)
	}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.CommandContext(ctx, Path, cmdArgs...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		output := strings.TrimSpace(out.String())
		return "", &Error{Code: parseCode(output), Output: output, Err: err}
	}
	return strings.TrimSpace(out.String()), nil
}

func parseCode(output string) int {
	m := errorNumber.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return code
}

// IsNotAuthorized reports whether err is a refused permission.
func IsNotAuthorized(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == CodeNotAuthorized || strings.Contains(strings.ToLower(e.Output), "not authorized")
}

// SplitRows splits script output into rows of exactly n fields. Blank
// lines and rows with a different field count are skipped.
func SplitRows(out string, n int) [][]string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, FieldSep)
		if len(parts) != n {
			continue
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		rows = append(rows, parts)
	}
	return rows
}
