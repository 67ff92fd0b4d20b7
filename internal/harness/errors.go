// internal/harness/errors.go
package harness

import "errors"

// Sentinel errors for the harness failure taxonomy. Callers match them with
// errors.Is; the wrapped message carries the diagnostic context (selector,
// timeout, last observed value).
var (
	// ErrNavigationTimeout indicates the readiness condition was never reached
	// within the navigation deadline. Fatal to the test; the session should be
	// disposed.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrElementNotActionable indicates the locator never resolved to a single
	// visible, enabled node within the action deadline.
	ErrElementNotActionable = errors.New("element not actionable")

	// ErrAmbiguousLocator indicates more than one node matched a locator for an
	// action that requires exactly one.
	ErrAmbiguousLocator = errors.New("ambiguous locator")

	// ErrConditionTimeout indicates a WaitFor predicate never became true.
	ErrConditionTimeout = errors.New("condition timeout")

	// ErrUnresolvedDialog indicates a native dialog fired with no registered
	// handler. The page is stalled; the session must be disposed. This is
	// always a harness-usage defect, never a valid test outcome.
	ErrUnresolvedDialog = errors.New("unresolved dialog")

	// ErrElementAbsent indicates an immediate read targeted an element that
	// does not exist. Distinct from an element that is present but blank.
	ErrElementAbsent = errors.New("element absent")

	// ErrSessionClosed indicates an operation was attempted on a closed session.
	ErrSessionClosed = errors.New("session closed")
)
