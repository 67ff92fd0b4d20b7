// internal/harness/actions.go
// User-intent actions dispatched against located elements. Every dispatch
// first waits for the locator to resolve to exactly one actionable node
// (visible, enabled for click-like actions). The call returns once the
// browser-side event dispatch completes; the page's *reaction* to the event
// (DOM mutation, timers) is deliberately not awaited here. Synchronizing with
// deferred effects is the state reader's job.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// awaitActionable polls until the locator resolves to exactly one visible
// (and, when required, enabled) node. Ambiguity fails immediately: matching
// more nodes over time is not a state that settles on its own.
func (s *Session) awaitActionable(ctx context.Context, loc Locator, needEnabled bool) error {
	interval := s.cfg.Harness().PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	var last probeResult
	for {
		var probe probeResult
		if err := s.runActions(ctx, chromedp.Evaluate(loc.probeScript(), &probe)); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %q (last state: %d matches, visible=%t, enabled=%t)",
					ErrElementNotActionable, loc, last.Count, last.Visible, last.Enabled)
			}
			return fmt.Errorf("locator probe failed for %q: %w", loc, err)
		}
		last = probe

		if probe.Count > 1 {
			return fmt.Errorf("%w: %q matched %d nodes, action requires exactly one", ErrAmbiguousLocator, loc, probe.Count)
		}
		if probe.Count == 1 && probe.Visible && (probe.Enabled || !needEnabled) {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %q (last state: %d matches, visible=%t, enabled=%t)",
				ErrElementNotActionable, loc, probe.Count, probe.Visible, probe.Enabled)
		case <-time.After(interval):
		}
	}
}

// dispatch wraps the shared action plumbing: usability check, operational
// timeout, actionability wait, then the chromedp actions themselves.
func (s *Session) dispatch(ctx context.Context, name string, loc Locator, needEnabled bool, actions ...chromedp.Action) error {
	if err := s.usable(); err != nil {
		return err
	}
	s.logger.Debug("Dispatching action", zap.String("action", name), zap.String("selector", loc.String()))

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Harness().ActionTimeout)
	defer cancel()

	if err := s.awaitActionable(opCtx, loc, needEnabled); err != nil {
		return err
	}

	if err := s.runActions(opCtx, actions...); err != nil {
		return fmt.Errorf("%s failed for selector %q: %w", name, loc, err)
	}
	return nil
}

// Click clicks the single element the locator resolves to.
func (s *Session) Click(ctx context.Context, loc Locator) error {
	return s.dispatch(ctx, "click", loc, true,
		chromedp.ScrollIntoView(loc.selector, chromedp.ByQuery),
		chromedp.Click(loc.selector, chromedp.ByQuery),
	)
}

// DblClick double-clicks the single element the locator resolves to.
func (s *Session) DblClick(ctx context.Context, loc Locator) error {
	return s.dispatch(ctx, "dblclick", loc, true,
		chromedp.ScrollIntoView(loc.selector, chromedp.ByQuery),
		chromedp.DoubleClick(loc.selector, chromedp.ByQuery),
	)
}

// Fill clears the element and types the given text into it.
func (s *Session) Fill(ctx context.Context, loc Locator, text string) error {
	return s.dispatch(ctx, "fill", loc, true,
		chromedp.ScrollIntoView(loc.selector, chromedp.ByQuery),
		chromedp.Clear(loc.selector, chromedp.ByQuery),
		chromedp.SendKeys(loc.selector, text, chromedp.ByQuery),
	)
}

// SelectOption sets the value of a <select> element and fires the input and
// change events its handlers listen for.
func (s *Session) SelectOption(ctx context.Context, loc Locator, value string) error {
	script := fmt.Sprintf(`(function(sel, value) {
		const el = document.querySelector(sel);
		el.value = value;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	})(%s, %s)`, jsArg(loc.selector), jsArg(value))

	return s.dispatch(ctx, "selectOption", loc, true,
		chromedp.Evaluate(script, nil),
	)
}

// Check sets a checkbox or radio to checked.
func (s *Session) Check(ctx context.Context, loc Locator) error {
	return s.setChecked(ctx, loc, true)
}

// Uncheck clears a checkbox.
func (s *Session) Uncheck(ctx context.Context, loc Locator) error {
	return s.setChecked(ctx, loc, false)
}

func (s *Session) setChecked(ctx context.Context, loc Locator, checked bool) error {
	script := fmt.Sprintf(`(function(sel, checked) {
		const el = document.querySelector(sel);
		if (el.checked !== checked) {
			el.checked = checked;
			el.dispatchEvent(new Event('input', { bubbles: true }));
			el.dispatchEvent(new Event('change', { bubbles: true }));
		}
	})(%s, %t)`, jsArg(loc.selector), checked)

	return s.dispatch(ctx, "setChecked", loc, true,
		chromedp.Evaluate(script, nil),
	)
}

// PressKey focuses the element and dispatches the given key input. Key names
// follow the chromedp/kb conventions ("Enter", "\t", "a", ...).
func (s *Session) PressKey(ctx context.Context, loc Locator, key string) error {
	return s.dispatch(ctx, "pressKey", loc, false,
		chromedp.Focus(loc.selector, chromedp.ByQuery),
		chromedp.KeyEvent(key),
	)
}

// MouseMove dispatches a raw pointer move to viewport coordinates. The
// position is remembered for subsequent MouseDown/MouseUp calls.
func (s *Session) MouseMove(ctx context.Context, x, y float64) error {
	if err := s.usable(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Harness().ActionTimeout)
	defer cancel()

	p := input.DispatchMouseEvent(input.MouseMoved, x, y)
	if err := s.runActions(opCtx, p); err != nil {
		return fmt.Errorf("mouseMove failed: %w", err)
	}

	s.mu.Lock()
	s.mouseX, s.mouseY = x, y
	s.mu.Unlock()
	return nil
}

// MouseDown presses the left button at the last moved-to position.
func (s *Session) MouseDown(ctx context.Context) error {
	return s.mouseButton(ctx, input.MousePressed)
}

// MouseUp releases the left button at the last moved-to position.
func (s *Session) MouseUp(ctx context.Context) error {
	return s.mouseButton(ctx, input.MouseReleased)
}

func (s *Session) mouseButton(ctx context.Context, typ input.MouseType) error {
	if err := s.usable(); err != nil {
		return err
	}

	s.mu.Lock()
	x, y := s.mouseX, s.mouseY
	s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.Harness().ActionTimeout)
	defer cancel()

	p := input.DispatchMouseEvent(typ, x, y).
		WithButton(input.Left).
		WithClickCount(1)
	if err := s.runActions(opCtx, p); err != nil {
		return fmt.Errorf("%s failed: %w", typ, err)
	}
	return nil
}
