// Package ui contains the pure read-side of the client: a projection of the
// session state into renderable fields, and the independent stored-time
// clock. Nothing here owns orchestration logic.
package ui

import (
	"fmt"

	"github.com/medvolt/scanblur/internal/client/session"
)

// View is what a front-end renders for one upload attempt.
type View struct {
	PhaseLabel  string
	Detail      string
	ErrorText   string
	CanDownload bool
}

var phaseLabels = map[session.Phase]string{
	session.PhaseIdle:                   "Waiting for a file",
	session.PhaseValidating:             "Checking file",
	session.PhaseAcquiringToken:         "Signing in",
	session.PhaseRequestingUploadTarget: "Preparing upload",
	session.PhaseTransferring:           "Uploading",
	session.PhaseAwaitingProcessing:     "Processing",
	session.PhaseFetchingDownloadURL:    "Fetching result link",
	session.PhaseReady:                  "Ready",
	session.PhaseFailed:                 "Failed",
}

// Project maps a state snapshot to view fields. It is a pure function: same
// snapshot in, same view out, no side effects.
func Project(s session.State) View {
	v := View{PhaseLabel: phaseLabels[s.Phase]}

	switch s.Phase {
	case session.PhaseTransferring:
		v.Detail = fmt.Sprintf("Uploading %s (%d bytes)", s.FileName, s.Size)
	case session.PhaseAwaitingProcessing:
		v.Detail = fmt.Sprintf("Waiting for %s to be processed", s.OriginalKey)
		if s.StallNotice {
			v.Detail = "Processing is taking longer than expected"
		}
	case session.PhaseReady:
		v.Detail = fmt.Sprintf("Blurred volume %s is ready to download", s.BlurredKey)
		v.CanDownload = true
	case session.PhaseFailed:
		if s.LastError != nil {
			v.ErrorText = fmt.Sprintf("%s failed: %s", failLabel(s.LastError.Kind), s.LastError.Message)
		} else {
			v.ErrorText = "upload failed"
		}
	}
	return v
}

func failLabel(kind session.FailKind) string {
	switch kind {
	case session.FailValidation:
		return "File check"
	case session.FailAuth:
		return "Sign-in"
	case session.FailUploadTargetDenied:
		return "Upload preparation"
	case session.FailTransfer:
		return "Upload"
	case session.FailProcessing:
		return "Processing"
	case session.FailDownloadTargetDenied:
		return "Result link"
	default:
		return "Upload"
	}
}
