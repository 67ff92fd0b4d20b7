package expect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/WangZhewei1027/demoprobe/internal/harness"
)

// Check evaluates a matcher against an observed value and returns the
// mismatch as an error. It is the non-fatal form used by the suite runner,
// where a failed expectation is a result to report rather than a test abort.
func Check(actual any, m Matcher) error {
	if err := m.Match(actual); err != nil {
		return fmt.Errorf("expected %s: %w", m, err)
	}
	return nil
}

// Verify evaluates a matcher and fails the test on mismatch. The failure
// message includes the session's console and runtime-error buffers so a
// mismatch can be diagnosed from the test log alone.
func Verify(tb testing.TB, s *harness.Session, actual any, m Matcher) {
	tb.Helper()
	if err := Check(actual, m); err != nil {
		tb.Fatalf("%v\n%s", err, DumpSignals(s))
	}
}

// CheckNoUnexpectedErrors reports an error when the session recorded any
// runtime errors or left a dialog unresolved. It is the standard teardown
// gate: page errors are captured passively during a run and only surface
// here, so a check that expects errors simply skips this gate.
func CheckNoUnexpectedErrors(s *harness.Session) error {
	errs := s.Signals().RuntimeErrors()
	if len(errs) == 0 && !s.Signals().UnresolvedDialog() {
		return nil
	}

	var b strings.Builder
	if len(errs) > 0 {
		fmt.Fprintf(&b, "%d unexpected page error(s)", len(errs))
	}
	if s.Signals().UnresolvedDialog() {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString("a dialog was left unresolved")
	}
	return fmt.Errorf("%s\n%s", b.String(), DumpSignals(s))
}

// NoUnexpectedErrors is the test form of CheckNoUnexpectedErrors.
func NoUnexpectedErrors(tb testing.TB, s *harness.Session) {
	tb.Helper()
	if err := CheckNoUnexpectedErrors(s); err != nil {
		tb.Fatal(err)
	}
}

// DumpSignals renders the session's signal buffers for failure messages.
func DumpSignals(s *harness.Session) string {
	var b strings.Builder

	console := s.Signals().ConsoleRecords()
	fmt.Fprintf(&b, "console buffer (%d):\n", len(console))
	for _, rec := range console {
		fmt.Fprintf(&b, "  [%s] %s\n", rec.Level, rec.Text)
	}

	errs := s.Signals().RuntimeErrors()
	fmt.Fprintf(&b, "runtime-error buffer (%d):\n", len(errs))
	for _, rec := range errs {
		fmt.Fprintf(&b, "  [%s] %s\n", rec.Kind, rec.Message)
	}

	dialogs := s.Signals().DialogRecords()
	fmt.Fprintf(&b, "dialog buffer (%d):\n", len(dialogs))
	for _, rec := range dialogs {
		fmt.Fprintf(&b, "  [%s] %q -> %s\n", rec.Kind, rec.Message, rec.Resolution)
	}

	return strings.TrimRight(b.String(), "\n")
}
