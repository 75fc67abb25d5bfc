package tts

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

type EngineType string

const (
	EngineTypeMock          EngineType = "mock"
	EngineTypeESpeak        EngineType = "espeak"
	EngineTypeGoogleClassic EngineType = "googleclassic"
	EngineTypeOpenAI        EngineType = "openai"
	EngineTypeSAPI          EngineType = "sapi" // Windows only
	EngineTypeSay           EngineType = "say"  // macOS only
	EngineTypeAuto          EngineType = "auto" // Automatically choose best for platform
)

func (e EngineType) String() string {
	return string(e)
}

// NewSynthesizer creates a synthesizer based on the provided config.
// hasKey tells auto-selection whether an API key is configured.
func NewSynthesizer(config Config, hasKey bool) (Synthesizer, error) {
	if config.Type == "" || config.Type == EngineTypeAuto.String() {
		config.Type = bestEngine(hasKey).String()
	}

	switch config.Type {
	case EngineTypeMock.String():
		return NewMockSynthesizer(), nil

	case EngineTypeGoogleClassic.String():
		return newGoogleClassicSynthesizer(config)

	case EngineTypeOpenAI.String():
		return newOpenAISynthesizer(config), nil

	case EngineTypeESpeak.String():
		return newESpeakSynthesizer(config)

	case EngineTypeSAPI.String():
		return newSAPISynthesizer(config)

	case EngineTypeSay.String():
		return newSaySynthesizer(config)

	default:
		return nil, fmt.Errorf("unsupported TTS engine type: %s", config.Type)
	}
}

// bestEngine returns the recommended engine for the current environment.
func bestEngine(hasKey bool) EngineType {
	if hasKey || hasGoogleCredentials() {
		return EngineTypeGoogleClassic
	}
	if platform, ok := platformEngine(); ok {
		return platform
	}
	if _, err := findESpeakExecutable(); err == nil {
		return EngineTypeESpeak
	}
	return EngineTypeMock
}

// platformEngine is the operating system's own synthesizer, if present.
func platformEngine() (EngineType, bool) {
	switch runtime.GOOS {
	case "windows":
		if _, err := exec.LookPath("powershell"); err == nil {
			return EngineTypeSAPI, true
		}
	case "darwin":
		if _, err := exec.LookPath("say"); err == nil {
			return EngineTypeSay, true
		}
	}
	return "", false
}

// AvailableEngines returns engines usable in the current environment.
func AvailableEngines(hasKey bool) []EngineType {
	engines := []EngineType{EngineTypeMock, EngineTypeOpenAI}

	if hasKey || hasGoogleCredentials() {
		engines = append(engines, EngineTypeGoogleClassic)
	}
	if _, err := findESpeakExecutable(); err == nil {
		engines = append(engines, EngineTypeESpeak)
	}
	if platform, ok := platformEngine(); ok {
		engines = append(engines, platform)
	}

	return engines
}

// hasGoogleCredentials checks if Google Cloud credentials are available
func hasGoogleCredentials() bool {
	_, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS")
	return ok
}
