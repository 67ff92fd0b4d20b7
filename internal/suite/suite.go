// Package suite organizes checks into named suites and runs them against the
// fixture pages with a bounded-concurrency runner. Each check gets a fresh
// browser session so state never leaks between checks.
package suite

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/WangZhewei1027/demoprobe/internal/harness"
)

// Check is a single named interaction scenario. Fn drives the session after
// the suite's page has loaded; returning an error fails the check.
// AllowPageErrors suppresses the teardown gate for checks that deliberately
// provoke page errors.
type Check struct {
	Name            string
	AllowPageErrors bool
	Fn              func(ctx context.Context, s *harness.Session) error
}

// Suite groups checks that share a fixture page and readiness condition.
type Suite struct {
	Name   string
	Page   string
	Ready  harness.Readiness
	Checks []Check
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]Suite)
)

// Register adds a suite to the global registry. Registering two suites with
// the same name is a programming error and panics at init time.
func Register(s Suite) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[s.Name]; exists {
		panic(fmt.Sprintf("duplicate suite registration: %q", s.Name))
	}
	registry[s.Name] = s
}

// All returns the registered suites sorted by name.
func All() []Suite {
	registryMu.Lock()
	defer registryMu.Unlock()

	suites := make([]Suite, 0, len(registry))
	for _, s := range registry {
		suites = append(suites, s)
	}
	sort.Slice(suites, func(i, j int) bool { return suites[i].Name < suites[j].Name })
	return suites
}
