// Cross-platform eSpeak implementation
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
)

// ESpeakSynthesizer renders WAV narration with a local eSpeak/eSpeak-NG.
type ESpeakSynthesizer struct {
	path   string
	config Config
}

func newESpeakSynthesizer(config Config) (*ESpeakSynthesizer, error) {
	espeakPath, err := findESpeakExecutable()
	if err != nil {
		return nil, fmt.Errorf("eSpeak not found: %w", err)
	}
	return &ESpeakSynthesizer{path: espeakPath, config: config}, nil
}

func findESpeakExecutable() (string, error) {
	candidates := []string{"espeak-ng", "espeak"}

	for _, candidate := range candidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("eSpeak executable not found in PATH")
}

func (e *ESpeakSynthesizer) Name() string { return EngineTypeESpeak.String() }

func (e *ESpeakSynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, scene.NewError(scene.ErrEmptyAudio, "espeak", fmt.Errorf("empty text"))
	}

	cmd := exec.CommandContext(ctx, e.path, e.args(req)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, scene.NewError(scene.ErrNetworkFailure, "espeak", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	return &Speech{
		AudioPayload: base64.StdEncoding.EncodeToString(stdout.Bytes()),
		Encoding:     audio.EncodingWAV,
	}, nil
}

func (e *ESpeakSynthesizer) args(req Request) []string {
	args := []string{"--stdout"}

	voice := req.Voice
	if voice == "" {
		voice = e.config.Voice
	}
	if voice != "" && voice != "default" {
		args = append(args, "-v", voice)
	}

	// words per minute, default is 175
	if e.config.Speed > 0 {
		args = append(args, "-s", strconv.Itoa(int(175*e.config.Speed)))
	}
	// amplitude 0-200, default is 100
	if e.config.Volume > 0 {
		args = append(args, "-a", strconv.Itoa(int(100*e.config.Volume)))
	}

	return append(args, req.Text)
}

func (e *ESpeakSynthesizer) Voices(ctx context.Context, _ string) ([]string, error) {
	output, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return nil, err
	}
	return parseESpeakVoices(string(output)), nil
}

func (e *ESpeakSynthesizer) Close() error { return nil }

func parseESpeakVoices(output string) []string {
	lines := strings.Split(output, "\n")
	voices := make([]string, 0)

	for i, line := range lines {
		// Skip header line
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}

		// Pty Language Age/Gender VoiceName File Other Languages
		fields := strings.Fields(line)
		if len(fields) >= 4 {
			voices = append(voices, fields[3])
		}
	}

	return voices
}
