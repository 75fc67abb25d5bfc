package scene

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("synthesize: %w", NewError(ErrEmptyAudio, "tts", nil))

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrNone},
		{"typed", NewError(ErrMissingCredential, "writer", errors.New("401")), ErrMissingCredential},
		{"wrapped typed", wrapped, ErrEmptyAudio},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrNetworkFailure},
		{"untyped", errors.New("connection reset"), ErrNetworkFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewError(ErrDecodeFailure, "decode", errors.New("bad header"))
	assert.Equal(t, "decode: decode_failure: bad header", err.Error())
	assert.Equal(t, "decode: empty_audio", NewError(ErrEmptyAudio, "decode", nil).Error())
}
