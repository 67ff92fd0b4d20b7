// internal/harness/locator.go
package harness

import (
	"encoding/json"
	"fmt"
)

// Locator is a deferred, re-resolvable reference to DOM node(s) by CSS
// selector. It is resolved lazily at the time of each operation, so it may be
// constructed before the matching elements exist. A Locator is plain data and
// safe to copy; it carries no session state.
type Locator struct {
	selector string
}

// Selector builds a Locator for a CSS selector.
func Selector(css string) Locator {
	return Locator{selector: css}
}

// String returns the underlying CSS selector, for diagnostics.
func (l Locator) String() string {
	return l.selector
}

// jsArg renders a Go string as a safely quoted JavaScript string literal.
func jsArg(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal of a string cannot fail; keep the fallback cheap.
		return `""`
	}
	return string(b)
}

// probeResult is the page-side snapshot of a locator's resolution, produced by
// the probe script in a single synchronous evaluation so the count and the
// actionability flags describe the same instant.
type probeResult struct {
	Count   int  `json:"count"`
	Visible bool `json:"visible"`
	Enabled bool `json:"enabled"`
}

// probeScript builds the JS expression that resolves a locator and reports how
// many nodes match plus whether the first match is visible and enabled.
func (l Locator) probeScript() string {
	return fmt.Sprintf(`(function(sel) {
		const nodes = document.querySelectorAll(sel);
		const out = { count: nodes.length, visible: false, enabled: false };
		if (nodes.length > 0) {
			const el = nodes[0];
			const style = window.getComputedStyle(el);
			const rect = el.getBoundingClientRect();
			out.visible = style.visibility !== 'hidden' &&
				style.display !== 'none' &&
				rect.width > 0 && rect.height > 0;
			out.enabled = !el.disabled;
		}
		return out;
	})(%s)`, jsArg(l.selector))
}
