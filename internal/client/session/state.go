// Package session owns one file's lifecycle from selection through
// processed-artifact availability. All state lives in a single event-loop
// goroutine: user actions, push events, and completions of in-flight network
// calls are discrete inputs to that loop, never direct mutations.
package session

// Phase is the current position in the upload lifecycle. Ready and Failed
// are terminal for an attempt; a new upload starts a fresh attempt.
type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhaseValidating             Phase = "validating"
	PhaseAcquiringToken         Phase = "acquiring-token"
	PhaseRequestingUploadTarget Phase = "requesting-upload-target"
	PhaseTransferring           Phase = "transferring"
	PhaseAwaitingProcessing     Phase = "awaiting-processing"
	PhaseFetchingDownloadURL    Phase = "fetching-download-url"
	PhaseReady                  Phase = "ready"
	PhaseFailed                 Phase = "failed"
)

// Terminal reports whether the phase ends the attempt.
func (p Phase) Terminal() bool {
	return p == PhaseReady || p == PhaseFailed
}

// FailKind names which part of the flow failed.
type FailKind string

const (
	FailValidation           FailKind = "validation"
	FailAuth                 FailKind = "auth"
	FailUploadTargetDenied   FailKind = "upload-target-denied"
	FailDownloadTargetDenied FailKind = "download-target-denied"
	FailTransfer             FailKind = "transfer"
	FailProcessing           FailKind = "processing"
)

// Failure is the terminal error record of an attempt.
type Failure struct {
	Kind    FailKind
	Message string
}

// State is a snapshot of the current attempt. BlurredKey is set only after a
// matching image-blurred event; DownloadURL only after that plus a successful
// download-URL fetch. DownloadURL is advisory: presigned URLs expire and are
// re-fetched on demand.
type State struct {
	FileName    string
	MIMEType    string
	Size        int
	OriginalKey string
	BlurredKey  string
	DownloadURL string
	Phase       Phase
	LastError   *Failure
	StallNotice bool
}
