package scene

// ViewState is what the stage is currently showing.
type ViewState int

const (
	ViewIdle ViewState = iota
	ViewLoading
	ViewScriptReady
)

func (v ViewState) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewScriptReady:
		return "script_ready"
	default:
		return "idle"
	}
}

func (v ViewState) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// NarrationStatus tracks the narration slot: Idle -> Requesting -> Playing -> Idle.
type NarrationStatus int

const (
	NarrationIdle NarrationStatus = iota
	NarrationRequesting
	NarrationPlaying
)

func (n NarrationStatus) String() string {
	switch n {
	case NarrationRequesting:
		return "requesting"
	case NarrationPlaying:
		return "playing"
	default:
		return "idle"
	}
}

func (n NarrationStatus) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

type RequestStatus int

const (
	StatusPending RequestStatus = iota
	StatusSucceeded
	StatusFailed
)

func (s RequestStatus) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Mode records where the current script came from.
type Mode string

const (
	ModeNone      Mode = ""
	ModeLive      Mode = "live"
	ModeSimulated Mode = "simulated"
	ModeFallback  Mode = "fallback"
)

// GenerationRequest is one text generation call.
type GenerationRequest struct {
	ID             string
	PromptSnapshot string
	Status         RequestStatus
	ResultText     string
	ErrorKind      ErrorKind
}

// NarrationRequest is one speech synthesis call scoped to a script.
type NarrationRequest struct {
	ID             string
	ScriptSnapshot string
	Status         RequestStatus
	AudioSamples   []byte
	ErrorKind      ErrorKind
}

// Notice is a one-shot, user visible message raised by a failed narration.
type Notice struct {
	Seq     int       `json:"seq"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Snapshot is the read-only view handed to presentation layers.
type Snapshot struct {
	GenerationID   string          `json:"generation_id,omitempty"`
	Prompt         string          `json:"prompt"`
	ViewState      ViewState       `json:"view_state"`
	Mode           Mode            `json:"mode,omitempty"`
	LoadingMessage string          `json:"loading_message,omitempty"`
	RevealedText   string          `json:"revealed_text"`
	RevealedLength int             `json:"revealed_length"`
	ScriptLength   int             `json:"script_length"`
	ShowCursor     bool            `json:"show_cursor"`
	Narration      NarrationStatus `json:"narration"`
	Notice         *Notice         `json:"notice,omitempty"`
}

// RevealComplete reports whether the whole script is on screen.
func (s Snapshot) RevealComplete() bool {
	return s.ViewState == ViewScriptReady && s.RevealedLength == s.ScriptLength
}
