// internal/harness/collector.go
package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// SignalCollector listens to the asynchronous channels a page emits on:
// console API calls, uncaught exceptions, and native dialogs. It buffers the
// first two for later assertion and answers dialogs through one-shot handlers.
// It also tracks in-flight network requests to support the network-idle
// readiness condition.
//
// Listeners attach at session construction, before the first navigation, so
// signals emitted during page load are never lost. Buffers are appended from
// the CDP event goroutine while the test goroutine reads them; every read
// returns a snapshot copy under the lock.
type SignalCollector struct {
	logger *zap.Logger

	// The context for the browser tab this collector is attached to.
	sessionCtx context.Context
	// A separate context for the listener so it can be stopped cleanly.
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	lock             sync.RWMutex
	console          []ConsoleRecord
	runtimeErrors    []RuntimeErrorRecord
	dialogs          []DialogRecord
	inflightRequests map[network.RequestID]bool

	// nextDialog is the one-shot answer for the next dialog to open, nil when
	// no handler is registered.
	nextDialog *DialogResponse
	// unresolvedDialog latches once a dialog fires with no handler. The page's
	// originating call is blocked forever; the session is unusable.
	unresolvedDialog bool

	isStarted bool
}

// NewSignalCollector creates a collector bound to a session context. Start must
// be called before the first navigation.
func NewSignalCollector(sessionCtx context.Context, logger *zap.Logger) *SignalCollector {
	return &SignalCollector{
		sessionCtx:       sessionCtx,
		logger:           logger.Named("collector"),
		console:          make([]ConsoleRecord, 0),
		runtimeErrors:    make([]RuntimeErrorRecord, 0),
		dialogs:          make([]DialogRecord, 0),
		inflightRequests: make(map[network.RequestID]bool),
	}
}

// Start registers the event listeners and enables the CDP domains they need.
// The enable commands are bounded by ctx in addition to the session lifetime.
func (c *SignalCollector) Start(ctx context.Context) error {
	c.lock.Lock()
	if c.isStarted {
		c.lock.Unlock()
		return nil
	}

	// Derived from the session, so if the session dies, the listener dies.
	c.listenerCtx, c.cancelListener = context.WithCancel(c.sessionCtx)
	c.isStarted = true

	chromedp.ListenTarget(c.listenerCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			c.handleConsoleAPICalled(e)
		case *runtime.EventExceptionThrown:
			c.handleExceptionThrown(e)
		case *page.EventJavascriptDialogOpening:
			c.handleDialogOpening(e)

		// Network lifecycle, for WaitNetworkIdle only.
		case *network.EventRequestWillBeSent:
			c.trackRequest(e.RequestID, true)
		case *network.EventLoadingFinished:
			c.trackRequest(e.RequestID, false)
		case *network.EventLoadingFailed:
			c.trackRequest(e.RequestID, false)
		}
	})
	c.lock.Unlock()

	// Tell Chrome which event domains we are interested in. The listener
	// callback takes c.lock, so these blocking commands must run after the
	// lock is released or an early event could stall the dispatch goroutine.
	runCtx, cancelRun := CombineContext(c.sessionCtx, ctx)
	defer cancelRun()
	err := chromedp.Run(runCtx,
		runtime.Enable(),
		network.Enable(),
		page.Enable(),
	)
	if err != nil {
		c.Stop()
		return fmt.Errorf("failed to enable CDP domains: %w", err)
	}

	c.logger.Debug("Signal collector started and listening for events.")
	return nil
}

// Stop halts event collection. Buffered records remain readable.
func (c *SignalCollector) Stop() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if !c.isStarted {
		return
	}
	c.cancelListener()
	c.cancelListener = nil
	c.isStarted = false
}

// ConsoleRecords returns a snapshot of the console buffer in emission order.
func (c *SignalCollector) ConsoleRecords() []ConsoleRecord {
	c.lock.RLock()
	defer c.lock.RUnlock()

	out := make([]ConsoleRecord, len(c.console))
	copy(out, c.console)
	return out
}

// RuntimeErrors returns a snapshot of the uncaught-exception buffer in
// emission order.
func (c *SignalCollector) RuntimeErrors() []RuntimeErrorRecord {
	c.lock.RLock()
	defer c.lock.RUnlock()

	out := make([]RuntimeErrorRecord, len(c.runtimeErrors))
	copy(out, c.runtimeErrors)
	return out
}

// DialogRecords returns a snapshot of the resolved-dialog buffer.
func (c *SignalCollector) DialogRecords() []DialogRecord {
	c.lock.RLock()
	defer c.lock.RUnlock()

	out := make([]DialogRecord, len(c.dialogs))
	copy(out, c.dialogs)
	return out
}

// OnNextDialog registers a one-shot handler for the next dialog to open. A
// handler must be registered before the action that triggers the dialog;
// otherwise the page's originating call blocks indefinitely and the session
// must be disposed.
func (c *SignalCollector) OnNextDialog(resp DialogResponse) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.nextDialog = &resp
}

// Reset clears all buffers without detaching listeners, scoping subsequent
// assertions to interactions after this point.
func (c *SignalCollector) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.console = c.console[:0]
	c.runtimeErrors = c.runtimeErrors[:0]
	c.dialogs = c.dialogs[:0]
}

// UnresolvedDialog reports whether a dialog has fired with no registered
// handler. Once true the session is stalled and must be disposed.
func (c *SignalCollector) UnresolvedDialog() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.unresolvedDialog
}

// WaitNetworkIdle polls until there are no in-flight network requests for the
// given quiet period.
func (c *SignalCollector) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	// NewTicker panics on a non-positive interval, so floor the poll rate for
	// degenerate quiet periods.
	tick := quietPeriod / 2
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("WaitNetworkIdle aborted due to context cancellation.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			c.lock.RLock()
			inflight := len(c.inflightRequests)
			c.lock.RUnlock()

			if inflight > 0 {
				lastActivity = time.Now()
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}

// -- Event handlers --

func (c *SignalCollector) trackRequest(id network.RequestID, inflight bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if inflight {
		c.inflightRequests[id] = true
	} else {
		delete(c.inflightRequests, id)
	}
}

func (c *SignalCollector) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var textBuilder strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		// Go through hoops to get a clean string representation of the console argument.
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			textBuilder.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			textBuilder.WriteString(arg.Description)
		} else {
			textBuilder.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	record := ConsoleRecord{
		Level:     consoleLevelFor(e.Type),
		Text:      textBuilder.String(),
		Timestamp: e.Timestamp.Time(),
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.console = append(c.console, record)
}

func consoleLevelFor(t runtime.APIType) ConsoleLevel {
	switch t {
	case runtime.APITypeLog:
		return ConsoleLog
	case runtime.APITypeInfo:
		return ConsoleInfo
	case runtime.APITypeWarning:
		return ConsoleWarn
	case runtime.APITypeError:
		return ConsoleError
	case runtime.APITypeDebug:
		return ConsoleDebug
	default:
		// console.table, console.trace and friends still carry text.
		return ConsoleLog
	}
}

func (c *SignalCollector) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}

	// The description usually has the most useful info, including the stack trace.
	message := e.ExceptionDetails.Text
	className := ""
	if exc := e.ExceptionDetails.Exception; exc != nil {
		className = exc.ClassName
		if exc.Description != "" {
			message = exc.Description
		}
	}

	record := RuntimeErrorRecord{
		Kind:      classifyRuntimeError(className, message),
		Message:   message,
		Timestamp: e.Timestamp.Time(),
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	c.runtimeErrors = append(c.runtimeErrors, record)
}

func (c *SignalCollector) handleDialogOpening(e *page.EventJavascriptDialogOpening) {
	c.lock.Lock()
	resp := c.nextDialog
	c.nextDialog = nil
	if resp == nil {
		// No handler registered: the page's prompt()/alert()/confirm() call is
		// now blocked forever. Latch the hazard; do not answer on the page's
		// behalf, the contract makes this a fatal usage defect.
		c.unresolvedDialog = true
		c.lock.Unlock()
		c.logger.Error("Dialog opened with no registered handler; session is stalled.",
			zap.String("type", string(e.Type)),
			zap.String("message", e.Message))
		return
	}
	c.lock.Unlock()

	// HandleJavaScriptDialog must not run on the event goroutine: chromedp
	// delivers events synchronously, so issuing a command here would deadlock.
	go func() {
		action := page.HandleJavaScriptDialog(resp.Accept)
		if resp.Accept && e.Type == page.DialogTypePrompt {
			action = action.WithPromptText(resp.PromptText)
		}
		if err := chromedp.Run(c.sessionCtx, action); err != nil {
			c.logger.Error("Failed to resolve dialog.", zap.Error(err))
			return
		}

		record := DialogRecord{
			Kind:       dialogKindFor(e.Type),
			Message:    e.Message,
			Resolution: DialogDismissed,
		}
		if resp.Accept {
			record.Resolution = DialogAccepted
			if e.Type == page.DialogTypePrompt {
				record.Value = resp.PromptText
			}
		}

		c.lock.Lock()
		c.dialogs = append(c.dialogs, record)
		c.lock.Unlock()
	}()
}

func dialogKindFor(t page.DialogType) DialogKind {
	switch t {
	case page.DialogTypeConfirm:
		return DialogConfirm
	case page.DialogTypePrompt:
		return DialogPrompt
	default:
		return DialogAlert
	}
}
