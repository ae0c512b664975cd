package ffmpeg

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrTimeout marks an invocation killed after exceeding its deadline.
var ErrTimeout = errors.New("ffmpeg invocation timed out")

// ExhaustedError is returned when every escaping strategy was rejected
// by the filter parser for one file.
type ExhaustedError struct {
	Path   string
	Stderr string // excerpt from the last attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all escaping strategies failed for %s", e.Path)
}

// ExecError is a non-syntax failure: the binary ran and rejected the
// file for reasons no escaping strategy can fix.
type ExecError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("ffmpeg failed for %s: %v", e.Path, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// reFilterSyntax classifies stderr lines produced when the filter-graph
// parser chokes on the drawtext value, which is the failure mode the
// escaping chain exists for. Anything else is not retried.
var reFilterSyntax = regexp.MustCompile(`(?i)` +
	`Error initializing filter|` +
	`Error parsing filterchain|` +
	`Error parsing a filter description|` +
	`Unable to parse graph description|` +
	`Unable to parse option value|` +
	`No option name near|` +
	`Undefined constant or missing|` +
	`Invalid chars .* at the end of expression|` +
	`Both text and text file provided|` +
	`No such filter`)

// MatchFilterSyntax reports whether stderr looks like a filter-graph
// syntax rejection.
func MatchFilterSyntax(stderr string) bool {
	return reFilterSyntax.MatchString(stderr)
}
