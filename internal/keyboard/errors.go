package keyboard

import "fmt"

// ParseError reports a malformed keyboard description. It is fatal: the
// search never starts on a keyboard that did not parse.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("keyboard description line %d: %s", e.Line, e.Msg)
	}
	return "keyboard description: " + e.Msg
}

func parseErrf(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
