package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Speaker is the system audio device. The device is initialised once at the
// rate of the first clip; later clips at another rate are resampled.
type Speaker struct {
	mu     sync.Mutex
	rate   beep.SampleRate
	inited bool
}

func NewSpeaker() *Speaker {
	return &Speaker{}
}

func (s *Speaker) Play(stream beep.Streamer, format beep.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.inited {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			return fmt.Errorf("failed to initialise speaker: %w", err)
		}
		s.rate = format.SampleRate
		s.inited = true
	}

	if format.SampleRate != s.rate {
		stream = beep.Resample(4, format.SampleRate, s.rate, stream)
	}
	speaker.Play(stream)
	return nil
}

func (s *Speaker) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inited {
		speaker.Clear()
	}
}
