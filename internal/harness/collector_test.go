package harness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/WangZhewei1027/demoprobe/internal/harness"
)

// waitUntil polls cond until it holds or the budget runs out.
func waitUntil(t *testing.T, budget time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

func TestConsoleRecordsPreserveOrder(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, `<!DOCTYPE html>
<html><body><script>
  console.log('first');
  console.warn('second');
  console.error('third');
</script></body></html>`)

	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	ok := waitUntil(t, 5*time.Second, func() bool {
		return len(session.Signals().ConsoleRecords()) >= 3
	})
	require.True(t, ok, "console records never arrived")

	records := session.Signals().ConsoleRecords()
	require.Len(t, records, 3)
	assert.Equal(t, "first", records[0].Text)
	assert.Equal(t, harness.ConsoleLog, records[0].Level)
	assert.Equal(t, "second", records[1].Text)
	assert.Equal(t, harness.ConsoleWarn, records[1].Level)
	assert.Equal(t, "third", records[2].Text)
	assert.Equal(t, harness.ConsoleError, records[2].Level)
}

func TestConsoleSnapshotIsIsolated(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, `<!DOCTYPE html>
<html><body><script>console.log('only');</script></body></html>`)

	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))
	require.True(t, waitUntil(t, 5*time.Second, func() bool {
		return len(session.Signals().ConsoleRecords()) == 1
	}))

	// Mutating the returned slice must not affect later reads.
	snapshot := session.Signals().ConsoleRecords()
	snapshot[0].Text = "tampered"

	fresh := session.Signals().ConsoleRecords()
	assert.Equal(t, "only", fresh[0].Text)
}

func TestResetClearsAllBuffers(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, `<!DOCTYPE html>
<html><body><script>
  console.log('before reset');
  setTimeout(function () { throw new TypeError('boom'); }, 0);
</script></body></html>`)

	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))
	require.True(t, waitUntil(t, 5*time.Second, func() bool {
		return len(session.Signals().ConsoleRecords()) > 0 &&
			len(session.Signals().RuntimeErrors()) > 0
	}))

	session.Signals().Reset()

	assert.Empty(t, session.Signals().ConsoleRecords())
	assert.Empty(t, session.Signals().RuntimeErrors())
	assert.Empty(t, session.Signals().DialogRecords())
}

func TestRuntimeErrorClassification(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	// Clicking the button dereferences undefined. The click must succeed; the
	// error is recorded passively.
	server := serveHTML(t, `<!DOCTYPE html>
<html><body>
<button id="boom">boom</button>
<script>
  document.getElementById('boom').addEventListener('click', function () {
    var nothing;
    nothing.explode();
  });
</script>
</body></html>`)

	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))
	require.NoError(t, session.Click(context.Background(), harness.Selector("#boom")))

	require.True(t, waitUntil(t, 5*time.Second, func() bool {
		return len(session.Signals().RuntimeErrors()) > 0
	}), "runtime error was never recorded")

	records := session.Signals().RuntimeErrors()
	require.Len(t, records, 1)
	assert.Equal(t, harness.TypeError, records[0].Kind)
	assert.NotEmpty(t, records[0].Message)
}

func TestWaitNetworkIdleDegenerateQuietPeriod(t *testing.T) {
	collector := harness.NewSignalCollector(context.Background(), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// A zero quiet period must not panic the internal ticker; with no
	// in-flight requests the network is idle immediately.
	require.NoError(t, collector.WaitNetworkIdle(ctx, 0))
}

func TestCollectorStartIsIdempotent(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)

	// The collector was already started during session creation; a second
	// Start is a no-op and must not disturb event delivery.
	require.NoError(t, session.Signals().Start(context.Background()))

	server := serveHTML(t, `<!DOCTYPE html>
<html><body><script>console.log('still listening');</script></body></html>`)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	require.True(t, waitUntil(t, 5*time.Second, func() bool {
		return len(session.Signals().ConsoleRecords()) == 1
	}), "console record never arrived after redundant Start")
}

func TestDialogHandling(t *testing.T) {
	fixture := setupBrowserManager(t)

	const dialogPage = `<!DOCTYPE html>
<html><body>
<button id="ask">ask</button>
<span id="answer"></span>
<script>
  document.getElementById('ask').addEventListener('click', function () {
    var name = prompt('who?');
    document.getElementById('answer').textContent = name === null ? 'none' : name;
  });
</script>
</body></html>`

	t.Run("PromptAccepted", func(t *testing.T) {
		session := fixture.initializeSession(t)
		server := serveHTML(t, dialogPage)
		require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

		session.Signals().OnNextDialog(harness.DialogResponse{Accept: true, PromptText: "42"})
		require.NoError(t, session.Click(context.Background(), harness.Selector("#ask")))

		text, err := session.WaitForText(context.Background(), harness.Selector("#answer"),
			func(s string) bool { return s != "" }, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "42", text)

		records := session.Signals().DialogRecords()
		require.Len(t, records, 1)
		assert.Equal(t, harness.DialogPrompt, records[0].Kind)
		assert.Equal(t, harness.DialogAccepted, records[0].Resolution)
		assert.Equal(t, "who?", records[0].Message)
	})

	t.Run("PromptDismissed", func(t *testing.T) {
		session := fixture.initializeSession(t)
		server := serveHTML(t, dialogPage)
		require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

		session.Signals().OnNextDialog(harness.DialogResponse{Accept: false})
		require.NoError(t, session.Click(context.Background(), harness.Selector("#ask")))

		text, err := session.WaitForText(context.Background(), harness.Selector("#answer"),
			func(s string) bool { return s != "" }, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "none", text)

		records := session.Signals().DialogRecords()
		require.Len(t, records, 1)
		assert.Equal(t, harness.DialogDismissed, records[0].Resolution)
	})

	t.Run("HandlerIsOneShot", func(t *testing.T) {
		session := fixture.initializeSession(t)
		server := serveHTML(t, dialogPage)
		require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

		session.Signals().OnNextDialog(harness.DialogResponse{Accept: true, PromptText: "once"})
		require.NoError(t, session.Click(context.Background(), harness.Selector("#ask")))

		_, err := session.WaitForText(context.Background(), harness.Selector("#answer"),
			func(s string) bool { return s == "once" }, 5*time.Second)
		require.NoError(t, err)

		// No handler is registered for the second prompt, so it latches.
		_ = session.Click(context.Background(), harness.Selector("#ask"))
		require.True(t, waitUntil(t, 5*time.Second, session.Signals().UnresolvedDialog))

		_, err = session.Text(context.Background(), harness.Selector("#answer"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, harness.ErrUnresolvedDialog), "expected ErrUnresolvedDialog, got: %v", err)
	})
}

func TestUnhandledDialogLatchesSession(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	// The page opens an alert on its own shortly after load; nobody registered
	// a handler for it.
	server := serveHTML(t, `<!DOCTYPE html>
<html><body>
<p id="content">text</p>
<script>setTimeout(function () { alert('surprise'); }, 100);</script>
</body></html>`)

	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))
	require.True(t, waitUntil(t, 5*time.Second, session.Signals().UnresolvedDialog),
		"unresolved dialog was never latched")

	_, err := session.Text(context.Background(), harness.Selector("#content"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, harness.ErrUnresolvedDialog))
}
