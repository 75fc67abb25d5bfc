package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
)

// SaySynthesizer renders narration with the macOS speech synthesizer.
type SaySynthesizer struct {
	config Config
	path   string
}

func newSaySynthesizer(config Config) (*SaySynthesizer, error) {
	if runtime.GOOS != "darwin" {
		return nil, fmt.Errorf("say engine only supports macOS")
	}
	path, err := exec.LookPath("say")
	if err != nil {
		return nil, fmt.Errorf("say not found: %w", err)
	}
	return &SaySynthesizer{config: config, path: path}, nil
}

func (s *SaySynthesizer) Name() string { return EngineTypeSay.String() }

func (s *SaySynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, scene.NewError(scene.ErrEmptyAudio, "say", fmt.Errorf("empty text"))
	}

	out, err := os.CreateTemp("", "directorscut-*.wav")
	if err != nil {
		return nil, scene.NewError(scene.ErrPlaybackFailure, "say", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path, s.args(req, out.Name())...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, scene.NewError(scene.ErrNetworkFailure, "say", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	data, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, scene.NewError(scene.ErrEmptyAudio, "say", err)
	}
	return &Speech{
		AudioPayload: base64.StdEncoding.EncodeToString(data),
		Encoding:     audio.EncodingWAV,
	}, nil
}

func (s *SaySynthesizer) args(req Request, path string) []string {
	args := []string{"-o", path, "--data-format=LEI16@22050"}

	voice := req.Voice
	if voice == "" {
		voice = s.config.Voice
	}
	if voice != "" && voice != "default" {
		args = append(args, "-v", voice)
	}
	// words per minute, default is 175
	if s.config.Speed > 0 {
		args = append(args, "-r", strconv.Itoa(int(175*s.config.Speed)))
	}

	return append(args, req.Text)
}

func (s *SaySynthesizer) Voices(ctx context.Context, _ string) ([]string, error) {
	output, err := exec.CommandContext(ctx, s.path, "-v", "?").Output()
	if err != nil {
		return nil, err
	}
	return parseSayVoices(string(output)), nil
}

func (s *SaySynthesizer) Close() error { return nil }

// parseSayVoices reads lines like "Bad News   en_US    # The light you see...".
func parseSayVoices(output string) []string {
	voices := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// the last field is the locale, a name may contain spaces
		voices = append(voices, strings.Join(fields[:len(fields)-1], " "))
	}
	return voices
}
