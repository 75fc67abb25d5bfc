package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
)

// SAPISynthesizer renders narration with the Windows Speech API through
// PowerShell.
type SAPISynthesizer struct {
	config     Config
	powershell string
}

func newSAPISynthesizer(config Config) (*SAPISynthesizer, error) {
	if runtime.GOOS != "windows" {
		return nil, fmt.Errorf("SAPI engine only supports Windows")
	}
	path, err := exec.LookPath("powershell")
	if err != nil {
		return nil, fmt.Errorf("powershell not found: %w", err)
	}
	return &SAPISynthesizer{config: config, powershell: path}, nil
}

func (s *SAPISynthesizer) Name() string { return EngineTypeSAPI.String() }

func (s *SAPISynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, scene.NewError(scene.ErrEmptyAudio, "sapi", fmt.Errorf("empty text"))
	}

	out, err := os.CreateTemp("", "directorscut-*.wav")
	if err != nil {
		return nil, scene.NewError(scene.ErrPlaybackFailure, "sapi", err)
	}
	out.Close()
	defer os.Remove(out.Name())

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.powershell, "-NoProfile", "-Command", s.script(req, out.Name()))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, scene.NewError(scene.ErrNetworkFailure, "sapi", fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	data, err := os.ReadFile(out.Name())
	if err != nil {
		return nil, scene.NewError(scene.ErrEmptyAudio, "sapi", err)
	}
	return &Speech{
		AudioPayload: base64.StdEncoding.EncodeToString(data),
		Encoding:     audio.EncodingWAV,
	}, nil
}

// script builds the PowerShell program that writes the narration to path.
func (s *SAPISynthesizer) script(req Request, path string) string {
	voice := req.Voice
	if voice == "" {
		voice = s.config.Voice
	}

	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	b.WriteString("$synth = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	// SAPI rate is -10..10, volume 0..100
	fmt.Fprintf(&b, "$synth.Rate = %d; ", sapiRate(s.config.Speed))
	fmt.Fprintf(&b, "$synth.Volume = %d; ", sapiVolume(s.config.Volume))
	if voice != "" && voice != "default" {
		fmt.Fprintf(&b, "$synth.SelectVoice('%s'); ", psQuote(voice))
	}
	fmt.Fprintf(&b, "$synth.SetOutputToWaveFile('%s'); ", psQuote(path))
	fmt.Fprintf(&b, "$synth.Speak('%s'); ", psQuote(req.Text))
	b.WriteString("$synth.Dispose()")
	return b.String()
}

func (s *SAPISynthesizer) Voices(ctx context.Context, _ string) ([]string, error) {
	script := "Add-Type -AssemblyName System.Speech; " +
		"(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | " +
		"ForEach-Object { $_.VoiceInfo.Name }"
	output, err := exec.CommandContext(ctx, s.powershell, "-NoProfile", "-Command", script).Output()
	if err != nil {
		return nil, err
	}

	voices := make([]string, 0)
	for _, line := range strings.Split(string(output), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			voices = append(voices, name)
		}
	}
	return voices, nil
}

func (s *SAPISynthesizer) Close() error { return nil }

func sapiRate(speed float64) int {
	if speed <= 0 {
		return 0
	}
	rate := int(speed*10) - 10
	if rate < -10 {
		rate = -10
	}
	if rate > 10 {
		rate = 10
	}
	return rate
}

func sapiVolume(volume float64) int {
	v := int(volume * 100)
	if volume <= 0 || v > 100 {
		return 100
	}
	return v
}

// PowerShell accepts the typographic single quotes as string delimiters too.
var psQuoter = strings.NewReplacer(
	"'", "''",
	"\u2018", "\u2018\u2018",
	"\u2019", "\u2019\u2019",
	"\u201A", "\u201A\u201A",
	"\u201B", "\u201B\u201B",
)

// psQuote escapes s for a single-quoted PowerShell string.
func psQuote(s string) string {
	return psQuoter.Replace(s)
}
