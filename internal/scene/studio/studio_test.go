package studio

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
	"directorscut/internal/scene/tts"
	"directorscut/internal/scene/writer"
)

const waitTimeout = 5 * time.Second

type fakeWriter struct {
	generate func(ctx context.Context, req writer.Request) (*writer.Result, error)
}

func (w *fakeWriter) Name() string { return "fake" }

func (w *fakeWriter) Generate(ctx context.Context, req writer.Request) (*writer.Result, error) {
	return w.generate(ctx, req)
}

func scriptFor(text string) *fakeWriter {
	return &fakeWriter{generate: func(context.Context, writer.Request) (*writer.Result, error) {
		return &writer.Result{Text: text}, nil
	}}
}

type fakeSynth struct {
	synthesize func(ctx context.Context, req tts.Request) (*tts.Speech, error)
}

func (s *fakeSynth) Name() string { return "fake" }

func (s *fakeSynth) Synthesize(ctx context.Context, req tts.Request) (*tts.Speech, error) {
	return s.synthesize(ctx, req)
}

func (s *fakeSynth) Voices(context.Context, string) ([]string, error) { return nil, nil }

func (s *fakeSynth) Close() error { return nil }

func toneSpeech() *tts.Speech {
	pcm := make([]byte, 1600)
	for i := 0; i < 800; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(6000)))
	}
	return &tts.Speech{
		AudioPayload: base64.StdEncoding.EncodeToString(audio.EncodeWAV(pcm, 8000, 1, 2)),
		Encoding:     audio.EncodingWAV,
	}
}

func speechOf(speech *tts.Speech, err error) *fakeSynth {
	return &fakeSynth{synthesize: func(context.Context, tts.Request) (*tts.Speech, error) {
		return speech, err
	}}
}

// manualOutput holds the streamer until the test finishes it.
type manualOutput struct {
	mu      sync.Mutex
	stream  beep.Streamer
	clears  int
	playErr error
}

func (o *manualOutput) Play(s beep.Streamer, _ beep.Format) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playErr != nil {
		return o.playErr
	}
	o.stream = s
	return nil
}

func (o *manualOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stream = nil
	o.clears++
}

func (o *manualOutput) playing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stream != nil
}

func (o *manualOutput) finish() {
	o.mu.Lock()
	s := o.stream
	o.stream = nil
	o.mu.Unlock()
	if s == nil {
		return
	}
	buf := make([][2]float64, 256)
	for {
		if _, ok := s.Stream(buf); !ok {
			return
		}
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.LoadingInterval = 5 * time.Millisecond
	opts.RevealInterval = time.Millisecond
	opts.SimulatedDelay = 0
	return opts
}

func newController(t *testing.T, w writer.Writer, s tts.Synthesizer, out audio.Output, key string) *Controller {
	t.Helper()
	if s == nil {
		s = speechOf(toneSpeech(), nil)
	}
	if out == nil {
		out = &manualOutput{}
	}
	c := New(w, s, audio.NewPlayer(out), StaticKey(key), testOptions())
	t.Cleanup(c.Close)
	return c
}

func waitFor(t *testing.T, c *Controller, cond func(scene.Snapshot) bool) scene.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	snap, err := c.WaitFor(ctx, cond)
	require.NoError(t, err, "last snapshot: %+v", snap)
	return snap
}

func revealed(s scene.Snapshot) bool { return s.RevealComplete() }

func narration(status scene.NarrationStatus) func(scene.Snapshot) bool {
	return func(s scene.Snapshot) bool { return s.Narration == status }
}

func readyScene(t *testing.T, c *Controller, prompt string) scene.Snapshot {
	t.Helper()
	require.True(t, c.SubmitPrompt(prompt))
	return waitFor(t, c, revealed)
}

func TestStartsIdle(t *testing.T) {
	c := newController(t, scriptFor("x"), nil, nil, "key")

	snap := c.Snapshot()
	assert.Equal(t, scene.ViewIdle, snap.ViewState)
	assert.Equal(t, scene.NarrationIdle, snap.Narration)
	assert.Empty(t, snap.RevealedText)
	assert.Nil(t, c.Generation())
}

func TestBlankPromptIsRejected(t *testing.T) {
	c := newController(t, scriptFor("x"), nil, nil, "key")

	for _, p := range []string{"", "   ", "\n\t"} {
		assert.False(t, c.SubmitPrompt(p))
	}
	assert.Equal(t, scene.ViewIdle, c.Snapshot().ViewState)
	assert.Nil(t, c.Generation())
}

func TestSimulatedSceneWithoutCredential(t *testing.T) {
	c := newController(t, scriptFor("never used"), nil, nil, "")

	snap := readyScene(t, c, "The hero discovers a hidden door")
	assert.Equal(t, scene.ModeSimulated, snap.Mode)
	assert.Equal(t, SimulatedScene("The hero discovers a hidden door"), snap.RevealedText)
	assert.Contains(t, snap.RevealedText, `The user requested: "The hero discovers a hidden door".`)
	assert.False(t, snap.ShowCursor)

	gen := c.Generation()
	require.NotNil(t, gen)
	assert.Equal(t, scene.StatusSucceeded, gen.Status)
	assert.Equal(t, scene.ErrNone, gen.ErrorKind)
}

func TestLiveScene(t *testing.T) {
	var got writer.Request
	w := &fakeWriter{generate: func(_ context.Context, req writer.Request) (*writer.Result, error) {
		got = req
		return &writer.Result{Text: "INT. LAB - DAY\n\nDR. VOSS\nIt worked."}, nil
	}}
	c := newController(t, w, nil, nil, "secret")

	snap := readyScene(t, c, "the clone is the original")
	assert.Equal(t, scene.ModeLive, snap.Mode)
	assert.Equal(t, "INT. LAB - DAY\n\nDR. VOSS\nIt worked.", snap.RevealedText)
	assert.Equal(t, "the clone is the original", snap.Prompt)
	assert.NotEmpty(t, snap.GenerationID)

	assert.Equal(t, "secret", got.APIKey)
	assert.Contains(t, got.UserContent, "the clone is the original")

	gen := c.Generation()
	assert.Equal(t, scene.StatusSucceeded, gen.Status)
	assert.Equal(t, snap.RevealedText, gen.ResultText)
	assert.Equal(t, "the clone is the original", gen.PromptSnapshot)
}

func TestGenerationFailureShowsErrorScene(t *testing.T) {
	tests := []struct {
		name string
		w    *fakeWriter
		want scene.ErrorKind
	}{
		{
			name: "network",
			w: &fakeWriter{generate: func(context.Context, writer.Request) (*writer.Result, error) {
				return nil, errors.New("connection refused")
			}},
			want: scene.ErrNetworkFailure,
		},
		{
			name: "credential",
			w: &fakeWriter{generate: func(context.Context, writer.Request) (*writer.Result, error) {
				return nil, scene.NewError(scene.ErrMissingCredential, "fake", errors.New("401"))
			}},
			want: scene.ErrMissingCredential,
		},
		{
			name: "empty",
			w:    scriptFor("  \n "),
			want: scene.ErrEmptyResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t, tt.w, nil, nil, "key")

			snap := readyScene(t, c, "twist")
			assert.Equal(t, scene.ModeFallback, snap.Mode)
			assert.Equal(t, ErrorScene(tt.want), snap.RevealedText)
			assert.Nil(t, snap.Notice)

			gen := c.Generation()
			assert.Equal(t, scene.StatusFailed, gen.Status)
			assert.Equal(t, tt.want, gen.ErrorKind)
			assert.Empty(t, gen.ResultText)
		})
	}
}

func TestErrorScenesDiffer(t *testing.T) {
	assert.NotEqual(t, ErrorScene(scene.ErrNetworkFailure), ErrorScene(scene.ErrMissingCredential))
	assert.NotEqual(t, ErrorScene(scene.ErrNetworkFailure), ErrorScene(scene.ErrEmptyResult))
	assert.True(t, strings.HasPrefix(ErrorScene(scene.ErrNetworkFailure), "INT. SYSTEM CORE - NIGHT"))
}

func TestLoadingMessagesRotate(t *testing.T) {
	w := &fakeWriter{generate: func(ctx context.Context, _ writer.Request) (*writer.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := newController(t, w, nil, nil, "key")

	require.True(t, c.SubmitPrompt("twist"))
	snap := c.Snapshot()
	assert.Equal(t, scene.ViewLoading, snap.ViewState)
	assert.Equal(t, DefaultLoadingMessages[0], snap.LoadingMessage)
	assert.Empty(t, snap.RevealedText)

	// Wraps around after the last message.
	for _, i := range []int{1, 2, 3, 0, 1} {
		want := DefaultLoadingMessages[i]
		waitFor(t, c, func(s scene.Snapshot) bool { return s.LoadingMessage == want })
	}
	assert.Equal(t, scene.ViewLoading, c.Snapshot().ViewState)
}

func TestSupersededGenerationIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	firstDone := make(chan struct{})
	w := &fakeWriter{generate: func(ctx context.Context, req writer.Request) (*writer.Result, error) {
		if strings.Contains(req.UserContent, "first") {
			close(firstStarted)
			<-ctx.Done()
			defer close(firstDone)
			return &writer.Result{Text: "STALE SCENE"}, nil
		}
		return &writer.Result{Text: "FRESH SCENE"}, nil
	}}
	c := newController(t, w, nil, nil, "key")

	require.True(t, c.SubmitPrompt("first"))
	<-firstStarted
	firstID := c.Generation().ID

	require.True(t, c.SubmitPrompt("second"))
	snap := waitFor(t, c, revealed)
	assert.Equal(t, "FRESH SCENE", snap.RevealedText)
	assert.NotEqual(t, firstID, snap.GenerationID)

	<-firstDone
	time.Sleep(20 * time.Millisecond)
	snap = c.Snapshot()
	assert.Equal(t, "FRESH SCENE", snap.RevealedText)
	assert.Equal(t, "second", snap.Prompt)
	assert.Equal(t, "FRESH SCENE", c.Generation().ResultText)
}

func TestRevealIsAlwaysAPrefix(t *testing.T) {
	script := "EXT. DESERT - NOON\n\nRIDER\nThe well was dry all along. ✦"
	c := newController(t, scriptFor(script), nil, nil, "key")

	ch, cancel := c.Subscribe()
	defer cancel()

	require.True(t, c.SubmitPrompt("twist"))

	deadline := time.After(waitTimeout)
	last := -1
	for {
		select {
		case snap := <-ch:
			if snap.ViewState != scene.ViewScriptReady {
				assert.Empty(t, snap.RevealedText)
				continue
			}
			assert.True(t, strings.HasPrefix(script, snap.RevealedText))
			assert.Equal(t, len([]rune(script)), snap.ScriptLength)
			assert.GreaterOrEqual(t, snap.RevealedLength, last)
			assert.Equal(t, snap.RevealedLength < snap.ScriptLength, snap.ShowCursor)
			last = snap.RevealedLength
			if snap.RevealComplete() {
				assert.Equal(t, script, snap.RevealedText)
				return
			}
		case <-deadline:
			t.Fatal("reveal did not complete")
		}
	}
}

func TestToggleWithoutScriptDoesNothing(t *testing.T) {
	called := false
	s := &fakeSynth{synthesize: func(context.Context, tts.Request) (*tts.Speech, error) {
		called = true
		return toneSpeech(), nil
	}}
	c := newController(t, scriptFor("x"), s, nil, "key")

	c.ToggleNarration()
	assert.Equal(t, scene.NarrationIdle, c.Snapshot().Narration)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, called)
}

func TestNarrationPlaysToCompletion(t *testing.T) {
	var got tts.Request
	s := &fakeSynth{synthesize: func(_ context.Context, req tts.Request) (*tts.Speech, error) {
		got = req
		return toneSpeech(), nil
	}}
	out := &manualOutput{}
	c := newController(t, scriptFor("INT. VAULT - NIGHT"), s, out, "key")
	readyScene(t, c, "twist")

	c.ToggleNarration()
	waitFor(t, c, narration(scene.NarrationPlaying))
	assert.True(t, out.playing())
	assert.Equal(t, "INT. VAULT - NIGHT", got.Text)
	assert.Equal(t, "key", got.APIKey)

	out.finish()
	snap := waitFor(t, c, narration(scene.NarrationIdle))
	assert.Nil(t, snap.Notice)
}

func TestToggleStopsPlayback(t *testing.T) {
	out := &manualOutput{}
	c := newController(t, scriptFor("INT. VAULT - NIGHT"), nil, out, "key")
	readyScene(t, c, "twist")

	c.ToggleNarration()
	waitFor(t, c, narration(scene.NarrationPlaying))

	c.ToggleNarration()
	assert.Equal(t, scene.NarrationIdle, c.Snapshot().Narration)
	assert.False(t, out.playing())

	// A second stop is harmless.
	c.narr.st.mu.Lock()
	c.narr.stopLocked()
	c.narr.st.mu.Unlock()
	assert.Equal(t, scene.NarrationIdle, c.Snapshot().Narration)
}

func TestToggleWhileRequestingCancels(t *testing.T) {
	started := make(chan struct{})
	returned := make(chan struct{})
	s := &fakeSynth{synthesize: func(ctx context.Context, _ tts.Request) (*tts.Speech, error) {
		close(started)
		<-ctx.Done()
		defer close(returned)
		return toneSpeech(), nil
	}}
	out := &manualOutput{}
	c := newController(t, scriptFor("INT. VAULT - NIGHT"), s, out, "key")
	readyScene(t, c, "twist")

	c.ToggleNarration()
	assert.Equal(t, scene.NarrationRequesting, c.Snapshot().Narration)
	<-started

	c.ToggleNarration()
	assert.Equal(t, scene.NarrationIdle, c.Snapshot().Narration)

	<-returned
	time.Sleep(20 * time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, scene.NarrationIdle, snap.Narration)
	assert.Nil(t, snap.Notice)
	assert.False(t, out.playing())
}

func TestNarrationFailures(t *testing.T) {
	tests := []struct {
		name  string
		synth *fakeSynth
		out   *manualOutput
		want  scene.ErrorKind
	}{
		{
			name:  "network",
			synth: speechOf(nil, errors.New("dial tcp: timeout")),
			want:  scene.ErrNetworkFailure,
		},
		{
			name:  "credential",
			synth: speechOf(nil, scene.NewError(scene.ErrMissingCredential, "fake", errors.New("no key"))),
			want:  scene.ErrMissingCredential,
		},
		{
			name:  "empty payload",
			synth: speechOf(&tts.Speech{Encoding: audio.EncodingWAV}, nil),
			want:  scene.ErrEmptyAudio,
		},
		{
			name:  "bad base64",
			synth: speechOf(&tts.Speech{AudioPayload: "%%%not-base64", Encoding: audio.EncodingWAV}, nil),
			want:  scene.ErrDecodeFailure,
		},
		{
			name: "bad container",
			synth: speechOf(&tts.Speech{
				AudioPayload: base64.StdEncoding.EncodeToString([]byte("definitely not a wav file")),
				Encoding:     audio.EncodingWAV,
			}, nil),
			want: scene.ErrDecodeFailure,
		},
		{
			name:  "no output",
			synth: speechOf(toneSpeech(), nil),
			out:   &manualOutput{playErr: errors.New("no device")},
			want:  scene.ErrPlaybackFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.out
			if out == nil {
				out = &manualOutput{}
			}
			c := newController(t, scriptFor("INT. VAULT - NIGHT"), tt.synth, out, "key")
			readyScene(t, c, "twist")

			c.ToggleNarration()
			snap := waitFor(t, c, func(s scene.Snapshot) bool { return s.Notice != nil })
			assert.Equal(t, scene.NarrationIdle, snap.Narration)
			assert.Equal(t, tt.want, snap.Notice.Kind)
			assert.NotEmpty(t, snap.Notice.Message)
			assert.False(t, out.playing())

			notice := c.TakeNotice()
			require.NotNil(t, notice)
			assert.Equal(t, tt.want, notice.Kind)
			assert.Nil(t, c.TakeNotice())
			assert.Nil(t, c.Snapshot().Notice)
		})
	}
}

func TestSubmitStopsNarration(t *testing.T) {
	out := &manualOutput{}
	c := newController(t, scriptFor("INT. VAULT - NIGHT"), nil, out, "key")
	readyScene(t, c, "twist")

	c.ToggleNarration()
	waitFor(t, c, narration(scene.NarrationPlaying))

	require.True(t, c.SubmitPrompt("another twist"))
	snap := c.Snapshot()
	assert.Equal(t, scene.NarrationIdle, snap.Narration)
	assert.False(t, out.playing())
	assert.Empty(t, c.Script())
	assert.NotEqual(t, scene.ViewIdle, snap.ViewState)

	waitFor(t, c, revealed)
	assert.Equal(t, scene.NarrationIdle, c.Snapshot().Narration)
}

func TestNarrationCanRestartAfterCompletion(t *testing.T) {
	out := &manualOutput{}
	c := newController(t, scriptFor("INT. VAULT - NIGHT"), nil, out, "key")
	readyScene(t, c, "twist")

	for i := 0; i < 2; i++ {
		c.ToggleNarration()
		waitFor(t, c, narration(scene.NarrationPlaying))
		out.finish()
		waitFor(t, c, narration(scene.NarrationIdle))
	}
}

func TestCloseStopsEverything(t *testing.T) {
	out := &manualOutput{}
	c := newController(t, scriptFor("INT. VAULT - NIGHT"), nil, out, "key")
	readyScene(t, c, "twist")

	c.ToggleNarration()
	waitFor(t, c, narration(scene.NarrationPlaying))

	ch, _ := c.Subscribe()
	c.Close()

	assert.False(t, out.playing())
	assert.Equal(t, scene.NarrationIdle, c.Snapshot().Narration)
	for range ch {
	}
	assert.False(t, c.SubmitPrompt("after close"))

	_, err := c.WaitFor(context.Background(), func(s scene.Snapshot) bool { return false })
	assert.ErrorIs(t, err, ErrClosed)

	c.Close()
}

func TestRenderVideoIsLocked(t *testing.T) {
	c := newController(t, scriptFor("x"), nil, nil, "key")
	assert.ErrorIs(t, c.RenderVideo(), ErrRenderLocked)
}

func TestTimeoutsBecomeNetworkFailure(t *testing.T) {
	hang := &fakeWriter{generate: func(ctx context.Context, _ writer.Request) (*writer.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	opts := testOptions()
	opts.GenerationTimeout = 30 * time.Millisecond
	c := New(hang, speechOf(toneSpeech(), nil), audio.NewPlayer(&manualOutput{}), StaticKey("key"), opts)
	t.Cleanup(c.Close)

	snap := readyScene(t, c, "twist")
	assert.Equal(t, scene.ModeFallback, snap.Mode)
	assert.Equal(t, ErrorScene(scene.ErrNetworkFailure), snap.RevealedText)
	assert.Equal(t, scene.ErrNetworkFailure, c.Generation().ErrorKind)

	silent := &fakeSynth{synthesize: func(ctx context.Context, _ tts.Request) (*tts.Speech, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	opts = testOptions()
	opts.NarrationTimeout = 30 * time.Millisecond
	out := &manualOutput{}
	c = New(scriptFor("INT. VAULT - NIGHT"), silent, audio.NewPlayer(out), StaticKey("key"), opts)
	t.Cleanup(c.Close)
	readyScene(t, c, "twist")

	c.ToggleNarration()
	snap = waitFor(t, c, func(s scene.Snapshot) bool { return s.Notice != nil })
	assert.Equal(t, scene.NarrationIdle, snap.Narration)
	assert.Equal(t, scene.ErrNetworkFailure, snap.Notice.Kind)
	assert.Equal(t, "INT. VAULT - NIGHT", c.Script())
	assert.False(t, out.playing())
}

func TestTemperatureReachesWriter(t *testing.T) {
	for _, temp := range []float32{0, 0.3} {
		got := make(chan float32, 1)
		w := &fakeWriter{generate: func(_ context.Context, req writer.Request) (*writer.Result, error) {
			got <- req.Temperature
			return &writer.Result{Text: "FADE IN"}, nil
		}}
		opts := testOptions()
		opts.Temperature = temp
		c := New(w, speechOf(toneSpeech(), nil), audio.NewPlayer(&manualOutput{}), StaticKey("key"), opts)

		readyScene(t, c, "twist")
		assert.Equal(t, temp, <-got)
		c.Close()
	}

	opts := testOptions()
	opts.Temperature = -1
	assert.Equal(t, writer.Temperature, opts.withDefaults().Temperature)
}

func TestCloseSilencesPlayer(t *testing.T) {
	out := &manualOutput{}
	player := audio.NewPlayer(out)
	c := New(scriptFor("x"), speechOf(toneSpeech(), nil), player, StaticKey("key"), testOptions())

	raw, err := base64.StdEncoding.DecodeString(toneSpeech().AudioPayload)
	require.NoError(t, err)
	clip, err := audio.Decode(raw, audio.EncodingWAV)
	require.NoError(t, err)
	h, err := player.Play(clip)
	require.NoError(t, err)
	require.True(t, out.playing())

	c.Close()
	<-h.Done()
	assert.Nil(t, player.Current())
	assert.False(t, out.playing())
}
