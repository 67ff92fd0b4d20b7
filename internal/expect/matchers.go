// Package expect provides the assertion vocabulary used by checks: matchers
// over observed page state, failure reporting that dumps the session's signal
// buffers, and the no-unexpected-errors teardown gate.
package expect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Matcher judges an observed value. Match returns nil on success and a
// descriptive error on mismatch; String describes the expectation for
// failure messages.
type Matcher interface {
	Match(actual any) error
	String() string
}

// Equals matches when the actual value deep-equals want.
func Equals(want any) Matcher { return equalsMatcher{want: want} }

type equalsMatcher struct {
	want any
}

func (m equalsMatcher) Match(actual any) error {
	if diff := cmp.Diff(m.want, actual); diff != "" {
		return fmt.Errorf("values differ (-want +got):\n%s", diff)
	}
	return nil
}

func (m equalsMatcher) String() string {
	return fmt.Sprintf("equals %v", m.want)
}

// Contains matches a string containing the given substring.
func Contains(substr string) Matcher { return containsMatcher{substr: substr} }

type containsMatcher struct {
	substr string
}

func (m containsMatcher) Match(actual any) error {
	s, err := asString(actual)
	if err != nil {
		return err
	}
	if !strings.Contains(s, m.substr) {
		return fmt.Errorf("%q does not contain %q", s, m.substr)
	}
	return nil
}

func (m containsMatcher) String() string {
	return fmt.Sprintf("contains %q", m.substr)
}

// MatchesRegexp matches a string against a compiled pattern. The pattern is
// compiled eagerly; an invalid pattern fails every Match with the compile
// error rather than panicking.
func MatchesRegexp(pattern string) Matcher {
	re, err := regexp.Compile(pattern)
	return regexpMatcher{pattern: pattern, re: re, compileErr: err}
}

type regexpMatcher struct {
	pattern    string
	re         *regexp.Regexp
	compileErr error
}

func (m regexpMatcher) Match(actual any) error {
	if m.compileErr != nil {
		return fmt.Errorf("invalid pattern %q: %w", m.pattern, m.compileErr)
	}
	s, err := asString(actual)
	if err != nil {
		return err
	}
	if !m.re.MatchString(s) {
		return fmt.Errorf("%q does not match /%s/", s, m.pattern)
	}
	return nil
}

func (m regexpMatcher) String() string {
	return fmt.Sprintf("matches /%s/", m.pattern)
}

// InRange matches a numeric value within [min, max] inclusive.
func InRange(min, max float64) Matcher { return rangeMatcher{min: min, max: max} }

type rangeMatcher struct {
	min, max float64
}

func (m rangeMatcher) Match(actual any) error {
	n, err := asFloat(actual)
	if err != nil {
		return err
	}
	if n < m.min || n > m.max {
		return fmt.Errorf("%v is outside [%v, %v]", n, m.min, m.max)
	}
	return nil
}

func (m rangeMatcher) String() string {
	return fmt.Sprintf("in range [%v, %v]", m.min, m.max)
}

// OneOf matches when the actual value deep-equals any allowed value.
func OneOf(allowed ...any) Matcher { return oneOfMatcher{allowed: allowed} }

type oneOfMatcher struct {
	allowed []any
}

func (m oneOfMatcher) Match(actual any) error {
	for _, want := range m.allowed {
		if cmp.Equal(want, actual) {
			return nil
		}
	}
	return fmt.Errorf("%v is not one of %v", actual, m.allowed)
}

func (m oneOfMatcher) String() string {
	return fmt.Sprintf("one of %v", m.allowed)
}

func asString(actual any) (string, error) {
	switch v := actual.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("expected a string, got %T", actual)
	}
}

func asFloat(actual any) (float64, error) {
	switch v := actual.(type) {
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", actual)
	}
}
