package operation

// Phase is the lifecycle position of the current operation.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// IsResting reports whether a new submission may be accepted from this phase.
func (p Phase) IsResting() bool {
	return p != PhaseRunning
}

func (p Phase) String() string {
	if p == "" {
		return string(PhaseIdle)
	}
	return string(p)
}

// Kind distinguishes the two operations sharing the controller.
type Kind string

const (
	KindDownload Kind = "download"
	KindConvert  Kind = "convert"
)

// Status messages shown while and after an operation runs.
const (
	MessageStarting       = "Starting..."
	MessageConverting     = "Converting..."
	MessageCompleted      = "Completed"
	MessageConverted      = "Converted"
	MessageDownloadFailed = "Download failed"
	MessageConvertFailed  = "Conversion failed"
)

// State is a snapshot of the controller. Kind is empty until the first
// submission.
type State struct {
	Phase        Phase
	Kind         Kind
	Message      string
	ArtifactPath string
}

// Result is the user-facing outcome of the last operation.
type Result struct {
	ArtifactPath string
	Message      string
}

// Result extracts the artifact and status message.
func (s State) Result() Result {
	return Result{ArtifactPath: s.ArtifactPath, Message: s.Message}
}

// HasArtifact reports whether a convert could be submitted from this state.
func (s State) HasArtifact() bool {
	return s.ArtifactPath != ""
}

// Transition describes one state change. RequestID correlates both
// transitions belonging to the same submission.
type Transition struct {
	From      State
	To        State
	RequestID string
}

// Settled reports whether the transition ends an operation.
func (t Transition) Settled() bool {
	return t.From.Phase == PhaseRunning && t.To.Phase.IsResting()
}

// DownloadSucceeded reports whether a download just finished successfully.
func (t Transition) DownloadSucceeded() bool {
	return t.Settled() && t.To.Phase == PhaseSucceeded && t.To.Kind == KindDownload
}

func settle(kind Kind, err error) (Phase, string) {
	if err != nil {
		return PhaseFailed, failureFallback(kind)
	}
	if kind == KindConvert {
		return PhaseSucceeded, MessageConverted
	}
	return PhaseSucceeded, MessageCompleted
}

func startingMessage(kind Kind) string {
	if kind == KindConvert {
		return MessageConverting
	}
	return MessageStarting
}

func failureFallback(kind Kind) string {
	if kind == KindConvert {
		return MessageConvertFailed
	}
	return MessageDownloadFailed
}
