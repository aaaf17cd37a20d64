package dynamap

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (exported consts for IDE completion and type safety by convention)
const (
	CodeRequired     = "required"      // a required field resolved to null
	CodeMismatch     = "mismatch"      // a resolved value does not fit the declared shape
	CodeUnknownField = "unknown_field" // no accessor with that name is declared
	CodeWrongSchema  = "wrong_schema"  // a structural operand belongs to another schema
	CodeBadSchema    = "bad_schema"    // the schema type itself is not classifiable
	CodeParseError   = "parse_error"   // input text could not be decoded
	CodeBadTag       = "bad_tag"       // tag registration conflict or malformed tagged literal
)

// Issue represents a single fault found by dispatch or validation.
type Issue struct {
	Path    string // JSON Pointer into the field tree (for example: /items/2).
	Code    string // One of the codes listed above.
	Message string
	// Expected and Actual carry declared vs. runtime shape names on mismatches.
	Expected string
	Actual   string
	Cause    error // Optional: underlying error.
}

// Issues is a collection of faults that implements error. Validation always
// returns every fault found, never just the first.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. required at /name
		fmt.Fprintf(b, "%s at %s", it.Code, it.Path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

func singleIssue(path, code, msg string) Issues {
	return Issues{Issue{Path: path, Code: code, Message: msg}}
}
