// internal/harness/session.go
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/WangZhewei1027/demoprobe/internal/config"
)

// Session represents one browser tab driven by one test. It owns its signal
// buffers and locators exclusively; sessions share nothing, so independent
// tests in separate sessions cannot interfere. Created per test, disposed at
// test end.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	signals *SignalCollector

	onClose func()

	mu       sync.Mutex
	isClosed bool
	// Last dispatched pointer position. MouseDown/MouseUp fire at this point.
	mouseX, mouseY float64
}

// newSession creates the browser tab and attaches the signal collector before
// any navigation can happen. Creation is bounded by ctx; the tab itself lives
// on the allocator context.
func newSession(ctx context.Context, allocCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	l := logger.With(zap.String("session_id", id[:8]))

	var ctxOpts []chromedp.ContextOption
	if cfg.Browser().Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(l.Sugar().Debugf))
	}
	sessionCtx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	s := &Session{
		id:      id,
		ctx:     sessionCtx,
		cancel:  cancel,
		logger:  l,
		cfg:     cfg,
		signals: NewSignalCollector(sessionCtx, l),
	}

	// Starting the collector materializes the tab (first chromedp.Run) and
	// registers listeners, so signals from the very first document load are
	// captured.
	if err := s.signals.Start(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start signal collector: %w", err)
	}

	l.Debug("Browser session initialized.")
	return s, nil
}

// ID returns the unique identifier for this session.
func (s *Session) ID() string {
	return s.id
}

// Signals returns the session's signal collector.
func (s *Session) Signals() *SignalCollector {
	return s.signals
}

// usable reports whether the session can accept further operations.
func (s *Session) usable() error {
	s.mu.Lock()
	closed := s.isClosed
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}
	if s.signals.UnresolvedDialog() {
		return fmt.Errorf("%w: a dialog fired with no registered handler; dispose the session", ErrUnresolvedDialog)
	}
	return nil
}

// runActions executes chromedp actions, ensuring they respect both the session
// lifetime (s.ctx) and the incoming operational context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// -- Navigator --

type readinessMode int

const (
	readyLoadEvent readinessMode = iota
	readyDOMReady
	readyNetworkIdle
	readySelectorVisible
)

// Readiness is the criterion Goto waits for before considering a page load
// complete.
type Readiness struct {
	mode     readinessMode
	selector string
}

// LoadEvent waits for the window load event only.
func LoadEvent() Readiness { return Readiness{mode: readyLoadEvent} }

// DOMReady waits for the document body to be ready.
func DOMReady() Readiness { return Readiness{mode: readyDOMReady} }

// NetworkIdle waits for the load event and then for in-flight network requests
// to go quiet.
func NetworkIdle() Readiness { return Readiness{mode: readyNetworkIdle} }

// SelectorVisible waits until the given selector matches a visible element.
func SelectorVisible(sel string) Readiness {
	return Readiness{mode: readySelectorVisible, selector: sel}
}

// GotoOption customizes a single navigation.
type GotoOption func(*gotoSettings)

type gotoSettings struct {
	timeout time.Duration
}

// WithNavigationTimeout overrides the configured navigation deadline for one call.
func WithNavigationTimeout(d time.Duration) GotoOption {
	return func(gs *gotoSettings) { gs.timeout = d }
}

// Goto loads the URL and waits for the readiness condition. It fails with
// ErrNavigationTimeout if readiness is not reached within the deadline
// (configured default, overridable per call). The signal collector is already
// attached, so console output and exceptions emitted while the page boots are
// recorded.
func (s *Session) Goto(ctx context.Context, url string, ready Readiness, opts ...GotoOption) error {
	if err := s.usable(); err != nil {
		return err
	}

	settings := gotoSettings{timeout: s.cfg.Harness().NavigationTimeout}
	for _, opt := range opts {
		opt(&settings)
	}
	if settings.timeout <= 0 {
		settings.timeout = 30 * time.Second
	}

	s.logger.Debug("Navigating", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navCtx, navCancel := context.WithTimeout(opCtx, settings.timeout)
	defer navCancel()

	tasks := chromedp.Tasks{chromedp.Navigate(url)}
	switch ready.mode {
	case readyDOMReady:
		tasks = append(tasks, chromedp.WaitReady("body", chromedp.ByQuery))
	case readySelectorVisible:
		tasks = append(tasks, chromedp.WaitVisible(ready.selector, chromedp.ByQuery))
	}

	if err := chromedp.Run(navCtx, tasks); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: readiness not reached for %q after %s", ErrNavigationTimeout, url, settings.timeout)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed for %q: %w", url, err)
	}

	if ready.mode == readyNetworkIdle {
		if err := s.signals.WaitNetworkIdle(navCtx, s.cfg.Harness().NetworkIdleQuiet); err != nil {
			if navCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("%w: network never went idle for %q after %s", ErrNavigationTimeout, url, settings.timeout)
			}
			return fmt.Errorf("network idle wait failed: %w", err)
		}
	}

	return nil
}

// Close safely terminates the browser tab and its associated resources. It is
// idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")

	// Stop listening first so no records arrive mid-teardown.
	s.signals.Stop()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for the session context to be fully done, respecting the caller's
	// deadline and a hard cap.
	waitCtx, cancelWait := context.WithTimeout(ctx, 10*time.Second)
	defer cancelWait()

	select {
	case <-s.ctx.Done():
		s.logger.Debug("Browser session closed gracefully.")
	case <-waitCtx.Done():
		s.logger.Warn("Deadline exceeded waiting for browser session to close.", zap.Error(waitCtx.Err()))
	}

	if s.onClose != nil {
		s.onClose()
	}
	return nil
}
