// Package studio turns a plot twist into a displayed, optionally narrated
// screenplay scene.
//
// One Controller owns one Session. The Session is guarded by a single mutex
// shared by the generation and narration managers; every asynchronous task
// carries the epoch of its slot at launch and drops its result if the slot
// has moved on by the time it resumes.
package studio

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/reveal"
	"directorscut/internal/scene/writer"
)

// Session is the single active generation session.
type Session struct {
	Prompt              string
	Script              string
	ViewState           scene.ViewState
	LoadingMessageIndex int
	Mode                scene.Mode
	Narration           scene.NarrationStatus
	Notice              *scene.Notice
	Generation          *scene.GenerationRequest
	NarrationRequest    *scene.NarrationRequest
}

// Credentials supplies the service key. It is consulted once per request;
// an empty key means no credential is configured.
type Credentials interface {
	APIKey() string
}

// StaticKey is a fixed credential.
type StaticKey string

func (k StaticKey) APIKey() string { return string(k) }

// DefaultLoadingMessages rotate on the stage while a scene is being written.
var DefaultLoadingMessages = []string{
	"Analyzing Plot Trajectory...",
	"Consulting Vector Database...",
	"Generating Character Arcs...",
	"Finalizing Screenplay...",
}

type Options struct {
	LoadingMessages []string
	LoadingInterval time.Duration
	RevealInterval  time.Duration
	// SimulatedDelay is how long the no-credential scene takes to "write".
	// Zero resolves immediately.
	SimulatedDelay    time.Duration
	GenerationTimeout time.Duration
	NarrationTimeout  time.Duration
	// Temperature is passed to the writer as is. Negative means the default.
	Temperature float32
	Voice       string
}

func DefaultOptions() Options {
	return Options{
		LoadingMessages:   DefaultLoadingMessages,
		LoadingInterval:   1500 * time.Millisecond,
		RevealInterval:    reveal.DefaultTick,
		SimulatedDelay:    2 * time.Second,
		GenerationTimeout: 45 * time.Second,
		NarrationTimeout:  60 * time.Second,
		Temperature:       writer.Temperature,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.LoadingMessages) == 0 {
		o.LoadingMessages = d.LoadingMessages
	}
	if o.LoadingInterval <= 0 {
		o.LoadingInterval = d.LoadingInterval
	}
	if o.RevealInterval <= 0 {
		o.RevealInterval = d.RevealInterval
	}
	if o.SimulatedDelay < 0 {
		o.SimulatedDelay = 0
	}
	if o.GenerationTimeout <= 0 {
		o.GenerationTimeout = d.GenerationTimeout
	}
	if o.NarrationTimeout <= 0 {
		o.NarrationTimeout = d.NarrationTimeout
	}
	if o.Temperature < 0 {
		o.Temperature = d.Temperature
	}
	return o
}

// state is the session record plus its lock.
type state struct {
	mu        sync.Mutex
	session   Session
	noticeSeq int
	changed   func()
}

// notify must be called without mu held.
func (st *state) notify() {
	if st.changed != nil {
		st.changed()
	}
}

func (st *state) raiseLocked(kind scene.ErrorKind, message string) {
	st.noticeSeq++
	st.session.Notice = &scene.Notice{Seq: st.noticeSeq, Kind: kind, Message: message}
	logrus.WithFields(logrus.Fields{
		"kind": kind.String(),
		"seq":  st.noticeSeq,
	}).Warn(message)
}
