// Package stage is the console front end: it types scenes onto the terminal
// and maps commands onto the studio controller.
package stage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"directorscut/internal/cli/scheme/colours"
	"directorscut/internal/config"
	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/studio"
	"directorscut/internal/scene/tts"
)

// Stage main application structure
type Stage struct {
	ctl   *studio.Controller
	synth tts.Synthesizer
	cfg   *config.Config

	in  io.Reader
	out io.Writer

	ctx    context.Context
	Cancel context.CancelFunc
}

func New(ctl *studio.Controller, synth tts.Synthesizer, cfg *config.Config, in io.Reader, out io.Writer) *Stage {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stage{
		ctl:    ctl,
		synth:  synth,
		cfg:    cfg,
		in:     in,
		out:    &lockedWriter{w: out},
		ctx:    ctx,
		Cancel: cancel,
	}
}

func (st *Stage) ShowWelcome() {
	fmt.Fprintln(st.out)
	colours.Title.Fprintln(st.out, "🎬 Director's Cut 🎬")
	fmt.Fprintln(st.out)
	colours.Info.Fprintln(st.out, "📚 Type a plot twist and press Enter to get a scene.")
	st.help()
	if st.apiKey() == "" {
		colours.Warning.Fprintln(st.out, "⚠️  No API key configured: scenes will be simulated.")
	}
	fmt.Fprintln(st.out)
}

func (st *Stage) help() {
	fmt.Fprintln(st.out, "  • /narrate (n)  - Play or stop narration")
	fmt.Fprintln(st.out, "  • /status       - Show the current session")
	fmt.Fprintln(st.out, "  • /render       - Render the scene as video")
	fmt.Fprintln(st.out, "  • /quit (q)     - Leave the studio")
}

// Direct runs the interactive session until /quit, end of input or Cancel.
func (st *Stage) Direct(cmd *cobra.Command, args []string) {
	st.ShowWelcome()

	ctx, cancel := context.WithCancel(st.ctx)
	defer cancel()

	v := &view{out: st.out, interactive: true}
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.follow(ctx, v, func(scene.Snapshot) bool { return false })
	}()

	if len(args) > 0 {
		st.ctl.SubmitPrompt(strings.Join(args, " "))
	} else {
		v.prompt()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(st.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				cancel()
				<-done
				return
			}
			if !st.handle(strings.TrimSpace(line)) {
				cancel()
				<-done
				colours.Warning.Fprintln(st.out, "👋 That's a wrap!")
				return
			}
		}
	}
}

// handle runs one input line. It returns false when the user quits.
func (st *Stage) handle(input string) bool {
	switch strings.ToLower(input) {
	case "":
		return true
	case "/quit", "/exit", "q", "quit":
		return false
	case "/narrate", "n":
		if st.ctl.Script() == "" {
			colours.Warning.Fprintln(st.out, "🎙️  Nothing to narrate yet.")
			return true
		}
		st.ctl.ToggleNarration()
	case "/status":
		st.status(st.ctl.Snapshot())
	case "/render":
		st.render()
	case "/help", "?":
		st.help()
	default:
		if strings.HasPrefix(input, "/") {
			colours.Info.Fprintf(st.out, "ℹ️  Unknown command %s\n", input)
			st.help()
			return true
		}
		st.ctl.SubmitPrompt(input)
	}
	return true
}

func (st *Stage) status(s scene.Snapshot) {
	colours.Title.Fprintln(st.out, "📋 Session")
	fmt.Fprintf(st.out, "  • View: %s\n", s.ViewState)
	if s.Prompt != "" {
		fmt.Fprintf(st.out, "  • Plot twist: %s\n", s.Prompt)
	}
	if s.Mode != scene.ModeNone {
		fmt.Fprintf(st.out, "  • Source: %s\n", s.Mode)
	}
	if s.ViewState == scene.ViewScriptReady {
		fmt.Fprintf(st.out, "  • Revealed: %d/%d\n", s.RevealedLength, s.ScriptLength)
	}
	fmt.Fprintf(st.out, "  • Narration: %s\n", s.Narration)
}

func (st *Stage) render() {
	if err := st.ctl.RenderVideo(); err != nil {
		colours.Warning.Fprintf(st.out, "🔒 Render Video: %v\n", err)
	}
}

// Scene generates one scene from the arguments, types it out and, with
// --narrate, plays the narration to the end.
func (st *Stage) Scene(cmd *cobra.Command, args []string) {
	narrate, _ := cmd.Flags().GetBool("narrate")

	prompt := strings.Join(args, " ")
	if strings.TrimSpace(prompt) == "" {
		colours.Prompt.Fprint(st.out, "🎬 Plot twist: ")
		line, _ := bufio.NewReader(st.in).ReadString('\n')
		prompt = strings.TrimSpace(line)
	}

	if err := st.scene(st.ctx, prompt, narrate); err != nil {
		colours.Error.Fprintf(st.out, "❌ Error: %v\n", err)
	}
}

func (st *Stage) scene(ctx context.Context, prompt string, narrate bool) error {
	if !st.ctl.SubmitPrompt(prompt) {
		return errors.New("a plot twist is required")
	}

	v := &view{out: st.out}
	if !st.follow(ctx, v, func(s scene.Snapshot) bool { return s.RevealComplete() }) {
		return ctx.Err()
	}
	if !narrate {
		return nil
	}

	// The toggle leaves Idle before it returns, so the next Idle is the end
	// of this narration, whether it played out or failed.
	st.ctl.ToggleNarration()
	if !st.follow(ctx, v, func(s scene.Snapshot) bool {
		return s.Narration == scene.NarrationIdle || s.Notice != nil
	}) {
		return ctx.Err()
	}
	return nil
}

// follow renders snapshots until cond holds. It reports false if ctx ended
// or the controller closed first.
func (st *Stage) follow(ctx context.Context, v *view, cond func(scene.Snapshot) bool) bool {
	ch, cancel := st.ctl.Subscribe()
	defer cancel()

	snap := st.ctl.Snapshot()
	for {
		v.render(snap)
		if snap.Notice != nil {
			st.ctl.TakeNotice()
		}
		if cond(snap) {
			return true
		}

		var ok bool
		select {
		case <-ctx.Done():
			return false
		case snap, ok = <-ch:
			if !ok {
				return false
			}
		}
	}
}

// Voices lists the voices of the configured narration engine.
func (st *Stage) Voices(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(st.ctx, 30*time.Second)
	defer cancel()

	fmt.Fprintln(st.out)
	colours.Title.Fprintf(st.out, "🎤 Voices (%s) 🎤\n", st.synth.Name())
	fmt.Fprintln(st.out)

	voices, err := st.synth.Voices(ctx, st.apiKey())
	if err != nil {
		logrus.WithError(err).Debug("Voice listing failed")
		colours.Error.Fprintf(st.out, "❌ Could not list voices: %v\n", err)
		return
	}
	if len(voices) == 0 {
		colours.Warning.Fprintln(st.out, "🔍 No voices reported by this engine.")
		return
	}
	for _, voice := range voices {
		fmt.Fprintf(st.out, "  • %s\n", voice)
	}
	colours.Success.Fprintf(st.out, "✨ Found %d voices ✨\n", len(voices))
}

// Settings prints the effective configuration.
func (st *Stage) Settings(cmd *cobra.Command, args []string) {
	fmt.Fprintln(st.out)
	colours.Title.Fprintln(st.out, "⚙️ Settings ⚙️")
	fmt.Fprintln(st.out)

	if st.cfg == nil {
		colours.Warning.Fprintln(st.out, "No configuration loaded.")
		return
	}
	c := st.cfg

	colours.Prompt.Fprintln(st.out, "🔑 Credentials:")
	fmt.Fprintf(st.out, "  • API key: %s\n", c.Credentials().Redacted())
	fmt.Fprintln(st.out)

	colours.Prompt.Fprintln(st.out, "✍️  Writer:")
	fmt.Fprintf(st.out, "  • Backend: %s\n", c.Writer.Backend)
	fmt.Fprintf(st.out, "  • Model: %s\n", orDefault(c.Writer.Model))
	fmt.Fprintf(st.out, "  • Temperature: %.1f\n", c.Writer.Temperature)
	fmt.Fprintf(st.out, "  • Timeout: %s\n", c.Writer.Timeout)
	fmt.Fprintln(st.out)

	colours.Prompt.Fprintln(st.out, "🎤 Narration:")
	fmt.Fprintf(st.out, "  • Engine: %s (%s)\n", st.synth.Name(), c.TTS.Type)
	engines := tts.AvailableEngines(st.apiKey() != "")
	names := make([]string, len(engines))
	for i, e := range engines {
		names[i] = e.String()
	}
	fmt.Fprintf(st.out, "  • Available here: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(st.out, "  • Voice: %s\n", orDefault(c.TTS.Voice))
	fmt.Fprintf(st.out, "  • Language: %s\n", c.TTS.Language)
	fmt.Fprintf(st.out, "  • Speed: %.1fx\n", c.TTS.Speed)
	fmt.Fprintf(st.out, "  • Volume: %.0f%%\n", c.TTS.Volume*100)
	fmt.Fprintf(st.out, "  • Cache: %s\n", c.TTS.CachePath)
	fmt.Fprintln(st.out)

	colours.Info.Fprintln(st.out, "💡 Override any of these in directorscut.yaml or with DIRECTORSCUT_* variables.")
}

func (st *Stage) apiKey() string {
	if st.cfg == nil {
		return ""
	}
	return st.cfg.Credentials().APIKey()
}

func orDefault(s string) string {
	if s == "" {
		return "default"
	}
	return s
}
