package stage

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"directorscut/internal/cli/scheme/colours"
	"directorscut/internal/domain/scene"
)

// Header is the decorative banner above every script. It carries no state.
func Header(generationID string) string {
	tag := strings.ToUpper(strings.ReplaceAll(generationID, "-", ""))
	if len(tag) > 9 {
		tag = tag[:9]
	}
	return fmt.Sprintf("// GEN_ID: %s\n// MODE: SCREENPLAY_V1", tag)
}

// view prints only what changed between successive snapshots.
type view struct {
	out         io.Writer
	interactive bool

	genID       string
	loading     string
	headerShown bool
	printed     int
	finished    bool
	narration   scene.NarrationStatus
	noticeSeq   int
}

func (v *view) render(s scene.Snapshot) {
	if s.GenerationID != v.genID {
		v.genID = s.GenerationID
		v.loading = ""
		v.headerShown = false
		v.printed = 0
		v.finished = false
	}

	switch s.ViewState {
	case scene.ViewLoading:
		if s.LoadingMessage != v.loading {
			v.loading = s.LoadingMessage
			colours.Loading.Fprintf(v.out, "🎬 %s\n", s.LoadingMessage)
		}
	case scene.ViewScriptReady:
		v.renderScript(s)
	}

	if s.Narration != v.narration {
		v.renderNarration(v.narration, s.Narration)
		v.narration = s.Narration
	}

	if s.Notice != nil && s.Notice.Seq != v.noticeSeq {
		v.noticeSeq = s.Notice.Seq
		colours.Warning.Fprintf(v.out, "\n⚠️  %s\n", s.Notice.Message)
		v.prompt()
	}
}

func (v *view) renderScript(s scene.Snapshot) {
	if !v.headerShown {
		v.headerShown = true
		fmt.Fprintln(v.out)
		colours.Header.Fprintln(v.out, Header(s.GenerationID))
		if s.Mode == scene.ModeSimulated {
			colours.Warning.Fprintln(v.out, "// SIMULATION: no API key configured")
		}
		fmt.Fprintln(v.out)
	}

	runes := []rune(s.RevealedText)
	if len(runes) > v.printed {
		colours.Script.Fprint(v.out, string(runes[v.printed:]))
		v.printed = len(runes)
	}

	if s.RevealComplete() && !v.finished {
		v.finished = true
		fmt.Fprint(v.out, "\n\n")
		if v.interactive {
			colours.Info.Fprintln(v.out, "💡 Type /narrate to hear it, or enter another plot twist.")
			v.prompt()
		}
	}
}

func (v *view) renderNarration(from, to scene.NarrationStatus) {
	switch to {
	case scene.NarrationRequesting:
		colours.Info.Fprintln(v.out, "🎙️  Requesting narration...")
	case scene.NarrationPlaying:
		colours.Success.Fprintln(v.out, "🔊 Narrating... (/narrate to stop)")
	case scene.NarrationIdle:
		if from == scene.NarrationPlaying {
			colours.Info.Fprintln(v.out, "🔇 Narration ended")
			v.prompt()
		}
	}
}

func (v *view) prompt() {
	if v.interactive {
		colours.Prompt.Fprint(v.out, "🎬 > ")
	}
}

// lockedWriter serializes writes from the input loop and the watcher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
