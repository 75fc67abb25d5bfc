package tts

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"math"
	"strings"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
)

const (
	mockSampleRate = 16000
	mockWordTime   = 0.12 // seconds of tone per word
)

// MockSynthesizer renders a short chime per word instead of speech. It needs
// no network and no key.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Name() string { return EngineTypeMock.String() }

func (m *MockSynthesizer) Synthesize(ctx context.Context, req Request) (*Speech, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := len(strings.Fields(req.Text))
	if words == 0 {
		return nil, scene.NewError(scene.ErrEmptyAudio, "mock synthesize", nil)
	}

	samples := int(float64(words) * mockWordTime * mockSampleRate)
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		t := float64(i) / mockSampleRate
		// fade each word in and out so the chimes are distinguishable
		env := math.Sin(math.Pi * math.Mod(t, mockWordTime) / mockWordTime)
		v := int16(6000 * env * math.Sin(2*math.Pi*440*t))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}

	wav := audio.EncodeWAV(pcm, mockSampleRate, 1, 2)
	return &Speech{
		AudioPayload: base64.StdEncoding.EncodeToString(wav),
		Encoding:     audio.EncodingWAV,
	}, nil
}

func (m *MockSynthesizer) Voices(context.Context, string) ([]string, error) {
	return []string{"mock-voice"}, nil
}

func (m *MockSynthesizer) Close() error { return nil }
