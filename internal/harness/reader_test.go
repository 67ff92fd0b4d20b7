package harness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WangZhewei1027/demoprobe/internal/harness"
)

const readerPage = `<!DOCTYPE html>
<html><body>
<h1 id="title" data-role="headline">Reader</h1>
<ul><li class="item">a</li><li class="item">b</li></ul>
<input id="field" type="text" value="preset">
<canvas id="blank" width="10" height="10"></canvas>
<canvas id="painted" width="10" height="10"></canvas>
<script>
  var ctx = document.getElementById('painted').getContext('2d');
  ctx.fillStyle = '#00ff00';
  ctx.fillRect(0, 0, 10, 10);
</script>
</body></html>`

func TestReadsAreIdempotent(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	first, err := session.Text(context.Background(), harness.Selector("#title"))
	require.NoError(t, err)
	second, err := session.Text(context.Background(), harness.Selector("#title"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n1, err := session.Count(context.Background(), harness.Selector("li.item"))
	require.NoError(t, err)
	n2, err := session.Count(context.Background(), harness.Selector("li.item"))
	require.NoError(t, err)
	assert.Equal(t, n1, n2)
	assert.Equal(t, 2, n1)
}

func TestTextOfAbsentElement(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	_, err := session.Text(context.Background(), harness.Selector("#missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, harness.ErrElementAbsent), "expected ErrElementAbsent, got: %v", err)
}

func TestCountOfAbsentSelectorIsZero(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	n, err := session.Count(context.Background(), harness.Selector(".nothing-here"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestAttributeRead(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	v, present, err := session.Attribute(context.Background(), harness.Selector("#title"), "data-role")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "headline", v)

	_, present, err = session.Attribute(context.Background(), harness.Selector("#title"), "data-nope")
	require.NoError(t, err)
	assert.False(t, present)

	_, _, err = session.Attribute(context.Background(), harness.Selector("#missing"), "data-role")
	require.Error(t, err)
	assert.True(t, errors.Is(err, harness.ErrElementAbsent))
}

func TestValueRead(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	v, err := session.Value(context.Background(), harness.Selector("#field"))
	require.NoError(t, err)
	assert.Equal(t, "preset", v)
}

func TestCanvasAbsentVersusBlank(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	// Absent canvas: a nil buffer plus an element-absent error.
	pixels, err := session.CanvasPixels(context.Background(), harness.Selector("#noCanvas"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, harness.ErrElementAbsent))
	assert.Nil(t, pixels)

	// Blank canvas: no error, full-size buffer, all zeroes.
	pixels, err = session.CanvasPixels(context.Background(), harness.Selector("#blank"))
	require.NoError(t, err)
	require.Len(t, pixels, 10*10*4)
	for _, b := range pixels {
		if b != 0 {
			t.Fatalf("blank canvas produced non-zero byte %d", b)
		}
	}

	// Painted canvas: same size, but with data.
	pixels, err = session.CanvasPixels(context.Background(), harness.Selector("#painted"))
	require.NoError(t, err)
	require.Len(t, pixels, 10*10*4)
	nonZero := 0
	for _, b := range pixels {
		if b != 0 {
			nonZero++
		}
	}
	assert.Positive(t, nonZero)
}

func TestWaitForZeroTimeoutEvaluatesOnce(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	// Predicate already holds: immediate success.
	n, err := session.WaitForCount(context.Background(), harness.Selector("li.item"),
		func(n int) bool { return n == 2 }, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Predicate does not hold: immediate ConditionTimeout, no retry loop.
	start := time.Now()
	_, err = session.WaitForCount(context.Background(), harness.Selector("li.item"),
		func(n int) bool { return n == 99 }, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, harness.ErrConditionTimeout), "expected ErrConditionTimeout, got: %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWaitForTimeoutCarriesLastValue(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, readerPage)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	_, err := session.WaitForText(context.Background(), harness.Selector("#title"),
		func(s string) bool { return s == "never" }, 500*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, harness.ErrConditionTimeout))
	// The failure message reports what was actually observed.
	assert.Contains(t, err.Error(), "Reader")
}

func TestWaitForObservesDelayedChange(t *testing.T) {
	fixture := setupBrowserManager(t)
	session := fixture.initializeSession(t)
	server := serveHTML(t, `<!DOCTYPE html>
<html><body>
<span id="status">pending</span>
<script>
  setTimeout(function () {
    document.getElementById('status').textContent = 'done';
  }, 300);
</script>
</body></html>`)
	require.NoError(t, session.Goto(context.Background(), server.URL, harness.LoadEvent()))

	text, err := session.WaitForText(context.Background(), harness.Selector("#status"),
		func(s string) bool { return s == "done" }, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "done", text)
}
