package studio

import (
	"fmt"

	"directorscut/internal/domain/scene"
)

// SimulatedScene is shown when no credential is configured. It echoes the
// prompt verbatim.
func SimulatedScene(prompt string) string {
	return fmt.Sprintf("INT. SERVER ROOM - NIGHT\n\n"+
		"SYSTEM\n(Warning)\nAPI Key not detected. Engaging simulation mode.\n\n"+
		"NARRATOR\nThe user requested: \"%s\".\n\n"+
		"HERO\n(Looking at screen)\nWait... this is just a simulation?\n\n"+
		"VILLAIN\nAlways has been.", prompt)
}

// ErrorScene is the in-fiction stand-in for a failed generation.
func ErrorScene(kind scene.ErrorKind) string {
	var logLine string
	switch kind {
	case scene.ErrMissingCredential:
		logLine = "The creative mainframe refused our credentials."
	case scene.ErrEmptyResult:
		logLine = "The creative mainframe returned a blank page."
	default:
		logLine = "Connection to the creative mainframe was interrupted."
	}
	return "INT. SYSTEM CORE - NIGHT\n\n" +
		"ERROR LOG\n" + logLine + "\n\n" +
		"SYSTEM (V.O.)\nPlease check your configuration or try again.\n\n" +
		"(The screen fades to black)"
}

func narrationNotice(kind scene.ErrorKind) string {
	switch kind {
	case scene.ErrMissingCredential:
		return "Audio generation requires a valid API key with text-to-speech access."
	case scene.ErrEmptyAudio:
		return "The narration service returned no audio."
	case scene.ErrDecodeFailure:
		return "The narration audio could not be decoded."
	case scene.ErrPlaybackFailure:
		return "No audio output is available for narration."
	default:
		return "The narration service could not be reached. Try again."
	}
}
