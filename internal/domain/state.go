package domain

// Stage is one mutually-exclusive phase of the generation pipeline.
// At most one stage is active at any time; entering a stage is only
// permitted when the current stage is Idle.
type Stage int

const (
	StageIdle Stage = iota
	StageDetecting
	StageSuggesting
	StageGenerating
)

// String returns a human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDetecting:
		return "detecting"
	case StageSuggesting:
		return "suggesting"
	case StageGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

// ChatRole identifies the author of a chat turn.
type ChatRole string

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

// ChatTurn is one entry of an append-only conversation transcript.
type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// Device describes one video input device.
type Device struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Facing string `json:"facing,omitempty"` // "user", "environment", or ""
}

// CameraState is the camera adapter's published state. When On is true,
// SelectedDeviceID always references an entry in Devices; invalid
// references are repaired by the selection fallback policy.
type CameraState struct {
	Devices          []Device `json:"devices"`
	SelectedDeviceID string   `json:"selectedDeviceId,omitempty"`
	On               bool     `json:"on"`
}

// SpeechState is the read-aloud adapter's exclusive state. At most one
// utterance is ever live; starting a new one cancels the previous.
type SpeechState int

const (
	SpeechIdle SpeechState = iota
	SpeechSpeaking
	SpeechPaused
)

// String returns a human-readable speech state.
func (s SpeechState) String() string {
	switch s {
	case SpeechIdle:
		return "idle"
	case SpeechSpeaking:
		return "speaking"
	case SpeechPaused:
		return "paused"
	default:
		return "unknown"
	}
}
