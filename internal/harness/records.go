// internal/harness/records.go
package harness

import (
	"strings"
	"time"
)

// ConsoleLevel is the severity of a console API call on the page.
type ConsoleLevel string

const (
	ConsoleLog   ConsoleLevel = "log"
	ConsoleInfo  ConsoleLevel = "info"
	ConsoleWarn  ConsoleLevel = "warn"
	ConsoleError ConsoleLevel = "error"
	ConsoleDebug ConsoleLevel = "debug"
)

// ConsoleRecord is one console message emitted by the page. Records are
// appended in emission order and never reordered.
type ConsoleRecord struct {
	Level     ConsoleLevel
	Text      string
	Timestamp time.Time
}

// RuntimeErrorKind classifies an uncaught exception surfaced from the page.
type RuntimeErrorKind string

const (
	ReferenceError RuntimeErrorKind = "ReferenceError"
	TypeError      RuntimeErrorKind = "TypeError"
	SyntaxError    RuntimeErrorKind = "SyntaxError"
	OtherError     RuntimeErrorKind = "Other"
)

// RuntimeErrorRecord is an uncaught exception from the page's execution
// context. It is passively recorded, never raised as a harness failure.
type RuntimeErrorRecord struct {
	Kind      RuntimeErrorKind
	Message   string
	Timestamp time.Time
}

// classifyRuntimeError maps a CDP exception class name (or, failing that, the
// message prefix) onto a RuntimeErrorKind.
func classifyRuntimeError(className, message string) RuntimeErrorKind {
	for _, kind := range []RuntimeErrorKind{ReferenceError, TypeError, SyntaxError} {
		if className == string(kind) || strings.HasPrefix(message, string(kind)) {
			return kind
		}
	}
	return OtherError
}

// DialogKind is the flavor of native dialog a page opened.
type DialogKind string

const (
	DialogAlert   DialogKind = "alert"
	DialogConfirm DialogKind = "confirm"
	DialogPrompt  DialogKind = "prompt"
)

// DialogResolution describes how the harness answered a dialog.
type DialogResolution string

const (
	DialogAccepted  DialogResolution = "accepted"
	DialogDismissed DialogResolution = "dismissed"
)

// DialogRecord is a native dialog that fired and was resolved by a registered
// handler. Unresolved dialogs never produce a record; they stall the page and
// poison the session instead.
type DialogRecord struct {
	Kind       DialogKind
	Message    string
	Resolution DialogResolution
	// Value is the prompt input supplied on accept, empty otherwise.
	Value string
}

// DialogResponse is the one-shot answer registered ahead of an action that is
// known to open a dialog.
type DialogResponse struct {
	Accept bool
	// PromptText is entered into prompt dialogs when Accept is true.
	PromptText string
}
