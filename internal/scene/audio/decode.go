// Package audio decodes narration payloads and owns the single playback
// channel of the studio.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// Encoding names the container of a synthesized payload.
type Encoding string

const (
	EncodingMP3 Encoding = "mp3"
	EncodingWAV Encoding = "wav"
)

var (
	ErrEmptyPayload = errors.New("audio payload is empty")
	ErrNoSamples    = errors.New("audio payload decoded to zero samples")
)

// Clip is a fully decoded, replayable piece of audio.
type Clip struct {
	Format beep.Format
	Buffer *beep.Buffer
}

// Len returns the clip length in samples.
func (c *Clip) Len() int { return c.Buffer.Len() }

// Duration returns the clip play time.
func (c *Clip) Duration() time.Duration {
	return c.Format.SampleRate.D(c.Buffer.Len())
}

// Decode turns raw payload bytes into samples. An empty payload yields
// ErrEmptyPayload; anything the decoder rejects is returned wrapped.
func Decode(payload []byte, enc Encoding) (*Clip, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch enc {
	case EncodingWAV:
		streamer, format, err = wav.Decode(bytes.NewReader(payload))
	case EncodingMP3, "":
		streamer, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(payload)))
	default:
		return nil, fmt.Errorf("unsupported audio encoding %q", enc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", enc, err)
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s samples: %w", enc, err)
	}
	if buffer.Len() == 0 {
		return nil, ErrNoSamples
	}

	return &Clip{Format: format, Buffer: buffer}, nil
}
