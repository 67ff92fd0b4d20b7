// internal/harness/reader.go
// Typed reads of resulting DOM/canvas state. Immediate reads return the
// current value without waiting and are only appropriate when the caller has
// independent evidence the DOM has settled. Whenever an action is expected to
// trigger asynchronous re-render, animation, or timer-driven changes (the
// dominant case for the demo pages), the awaited WaitFor variants are the
// sanctioned way to synchronize with the page's event loop.
//
// Reads have no side effects: reading the same query twice with no
// intervening action returns identical values.
package harness

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Box is an element's bounding rectangle in viewport coordinates.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Count returns the number of elements matching the locator. A page with no
// matches yields 0, not an error.
func (s *Session) Count(ctx context.Context, loc Locator) (int, error) {
	if err := s.usable(); err != nil {
		return 0, err
	}

	script := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsArg(loc.selector))
	var n int
	if err := s.runActions(ctx, chromedp.Evaluate(script, &n)); err != nil {
		return 0, fmt.Errorf("count read failed for %q: %w", loc, err)
	}
	return n, nil
}

// Text returns the text content of the first element matching the locator.
// Fails with ErrElementAbsent when nothing matches.
func (s *Session) Text(ctx context.Context, loc Locator) (string, error) {
	script := fmt.Sprintf(`(function(sel) {
		const el = document.querySelector(sel);
		return el === null ? null : el.textContent;
	})(%s)`, jsArg(loc.selector))

	return s.readNullableString(ctx, loc, "text", script)
}

// Value returns the current value of the first matching input, textarea, or
// select element. Fails with ErrElementAbsent when nothing matches.
func (s *Session) Value(ctx context.Context, loc Locator) (string, error) {
	script := fmt.Sprintf(`(function(sel) {
		const el = document.querySelector(sel);
		return el === null ? null : String(el.value);
	})(%s)`, jsArg(loc.selector))

	return s.readNullableString(ctx, loc, "value", script)
}

// Attribute returns the value of the named attribute on the first matching
// element. The boolean reports whether the attribute is present; an absent
// element fails with ErrElementAbsent.
func (s *Session) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	if err := s.usable(); err != nil {
		return "", false, err
	}

	script := fmt.Sprintf(`(function(sel, name) {
		const el = document.querySelector(sel);
		if (el === null) return null;
		return { present: el.hasAttribute(name), value: el.getAttribute(name) || "" };
	})(%s, %s)`, jsArg(loc.selector), jsArg(name))

	var res *struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := s.runActions(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return "", false, fmt.Errorf("attribute read failed for %q: %w", loc, err)
	}
	if res == nil {
		return "", false, fmt.Errorf("%w: %q", ErrElementAbsent, loc)
	}
	return res.Value, res.Present, nil
}

// BoundingBox returns the viewport rectangle of the first matching element.
// Fails with ErrElementAbsent when nothing matches.
func (s *Session) BoundingBox(ctx context.Context, loc Locator) (Box, error) {
	if err := s.usable(); err != nil {
		return Box{}, err
	}

	script := fmt.Sprintf(`(function(sel) {
		const el = document.querySelector(sel);
		if (el === null) return null;
		const r = el.getBoundingClientRect();
		return { x: r.x, y: r.y, width: r.width, height: r.height };
	})(%s)`, jsArg(loc.selector))

	var res *Box
	if err := s.runActions(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return Box{}, fmt.Errorf("bounding box read failed for %q: %w", loc, err)
	}
	if res == nil {
		return Box{}, fmt.Errorf("%w: %q", ErrElementAbsent, loc)
	}
	return *res, nil
}

// CanvasPixels returns the RGBA pixel buffer of the first matching canvas.
// An absent element fails with ErrElementAbsent; a canvas tainted by
// cross-origin content yields a zero-filled buffer of the canvas's size.
// Callers must not conflate the two: nil-with-error means "no element",
// zeroed data means "element present but blank or unreadable".
func (s *Session) CanvasPixels(ctx context.Context, loc Locator) ([]byte, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	script := fmt.Sprintf(`(function(sel) {
		const el = document.querySelector(sel);
		if (el === null || typeof el.getContext !== 'function') return null;
		let data;
		try {
			data = el.getContext('2d').getImageData(0, 0, el.width, el.height).data;
		} catch (e) {
			// Tainted canvas: report a blank buffer of the right size.
			data = new Uint8ClampedArray(el.width * el.height * 4);
		}
		let bin = '';
		const chunk = 0x8000;
		for (let i = 0; i < data.length; i += chunk) {
			bin += String.fromCharCode.apply(null, data.subarray(i, i + chunk));
		}
		return btoa(bin);
	})(%s)`, jsArg(loc.selector))

	var encoded *string
	if err := s.runActions(ctx, chromedp.Evaluate(script, &encoded)); err != nil {
		return nil, fmt.Errorf("canvas read failed for %q: %w", loc, err)
	}
	if encoded == nil {
		return nil, fmt.Errorf("%w: %q", ErrElementAbsent, loc)
	}

	pixels, err := base64.StdEncoding.DecodeString(*encoded)
	if err != nil {
		return nil, fmt.Errorf("canvas data for %q was not valid base64: %w", loc, err)
	}
	return pixels, nil
}

func (s *Session) readNullableString(ctx context.Context, loc Locator, what, script string) (string, error) {
	if err := s.usable(); err != nil {
		return "", err
	}

	var res *string
	if err := s.runActions(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return "", fmt.Errorf("%s read failed for %q: %w", what, loc, err)
	}
	if res == nil {
		return "", fmt.Errorf("%w: %q", ErrElementAbsent, loc)
	}
	return *res, nil
}

// -- Awaited reads --

// awaitCondition polls read until pred holds or the timeout elapses. A zero
// timeout evaluates exactly once: it succeeds iff the predicate already holds.
// A negative timeout uses the configured condition_timeout. Transiently absent
// elements (ErrElementAbsent) are tolerated and retried; the expiry error
// wraps ErrConditionTimeout and carries the last observed value for diagnosis.
func awaitCondition[T any](ctx context.Context, s *Session, read func(context.Context) (T, error), pred func(T) bool, timeout time.Duration) (T, error) {
	var last T
	var lastErr error

	if timeout < 0 {
		timeout = s.cfg.Harness().ConditionTimeout
	}

	interval := s.cfg.Harness().PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	for first := true; ; first = false {
		if !first {
			select {
			case <-ctx.Done():
				return last, fmt.Errorf("%w: canceled while waiting (last value: %v)", ErrConditionTimeout, last)
			case <-time.After(interval):
			}
		}

		v, err := read(ctx)
		if err == nil {
			last = v
			lastErr = nil
			if pred(v) {
				return v, nil
			}
		} else if isTransientReadError(err) {
			lastErr = err
		} else {
			return last, err
		}

		if timeout == 0 || !time.Now().Before(deadline) {
			if lastErr != nil {
				return last, fmt.Errorf("%w: predicate never held within %s (last read error: %v)", ErrConditionTimeout, timeout, lastErr)
			}
			return last, fmt.Errorf("%w: predicate never held within %s (last value: %v)", ErrConditionTimeout, timeout, last)
		}
	}
}

func isTransientReadError(err error) bool {
	return errors.Is(err, ErrElementAbsent)
}

// WaitForCount polls the match count until pred holds.
func (s *Session) WaitForCount(ctx context.Context, loc Locator, pred func(int) bool, timeout time.Duration) (int, error) {
	return awaitCondition(ctx, s, func(c context.Context) (int, error) {
		return s.Count(c, loc)
	}, pred, timeout)
}

// WaitForText polls the text content until pred holds.
func (s *Session) WaitForText(ctx context.Context, loc Locator, pred func(string) bool, timeout time.Duration) (string, error) {
	return awaitCondition(ctx, s, func(c context.Context) (string, error) {
		return s.Text(c, loc)
	}, pred, timeout)
}

// WaitForValue polls an input's value until pred holds.
func (s *Session) WaitForValue(ctx context.Context, loc Locator, pred func(string) bool, timeout time.Duration) (string, error) {
	return awaitCondition(ctx, s, func(c context.Context) (string, error) {
		return s.Value(c, loc)
	}, pred, timeout)
}
