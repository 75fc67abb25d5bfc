package reveal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevealReachesFullText(t *testing.T) {
	const text = "INT. WAREHOUSE - NIGHT"

	var (
		mu    sync.Mutex
		steps []int
	)
	e := New(time.Millisecond, func(n int) {
		mu.Lock()
		steps = append(steps, n)
		mu.Unlock()
	})

	e.Start(text)
	assert.True(t, e.Cursor())

	require.Eventually(t, func() bool {
		_, n, total := e.Prefix()
		return n == total
	}, time.Second, time.Millisecond)

	prefix, n, total := e.Prefix()
	assert.Equal(t, text, prefix)
	assert.Equal(t, len(text), n)
	assert.Equal(t, len(text), total)
	assert.False(t, e.Cursor())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, steps, len(text))
	for i, s := range steps {
		assert.Equal(t, i+1, s, "reveal must advance one character per step")
	}
}

func TestPrefixAlwaysMatchesText(t *testing.T) {
	const text = "HERO\nWait... this is just a simulation?"
	e := New(time.Millisecond, nil)
	e.Start(text)

	last := 0
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		prefix, n, total := e.Prefix()
		require.GreaterOrEqual(t, n, last)
		require.LessOrEqual(t, n, total)
		require.Equal(t, text[:n], prefix)
		last = n
		if n == total {
			return
		}
		time.Sleep(200 * time.Microsecond)
	}
	t.Fatal("reveal did not finish")
}

func TestRevealCountsRunes(t *testing.T) {
	e := New(time.Millisecond, nil)
	e.Start("café ☕")

	require.Eventually(t, func() bool { return !e.Cursor() }, time.Second, time.Millisecond)
	prefix, n, total := e.Prefix()
	assert.Equal(t, "café ☕", prefix)
	assert.Equal(t, 6, n)
	assert.Equal(t, 6, total)
}

func TestStartSupersedesRunningReveal(t *testing.T) {
	e := New(5*time.Millisecond, nil)
	e.Start("a long first script that will never finish")
	time.Sleep(12 * time.Millisecond)

	e.Start("second")
	_, n, total := e.Prefix()
	assert.Equal(t, 0, n)
	assert.Equal(t, len("second"), total)

	require.Eventually(t, func() bool { return !e.Cursor() }, time.Second, time.Millisecond)
	prefix, _, _ := e.Prefix()
	assert.Equal(t, "second", prefix)
}

func TestCancelFreezesReveal(t *testing.T) {
	e := New(2*time.Millisecond, nil)
	e.Start("FADE IN: a scene that is cancelled halfway through")
	time.Sleep(10 * time.Millisecond)

	e.Cancel()
	frozen := e.Revealed()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, frozen, e.Revealed())

	e.Cancel()
}

func TestResetAndEmptyText(t *testing.T) {
	e := New(time.Millisecond, nil)
	e.Start("")
	prefix, n, total := e.Prefix()
	assert.Empty(t, prefix)
	assert.Zero(t, n)
	assert.Zero(t, total)
	assert.False(t, e.Cursor())

	e.Start("abc")
	e.Reset()
	prefix, n, total = e.Prefix()
	assert.Empty(t, prefix)
	assert.Zero(t, n)
	assert.Zero(t, total)
}
