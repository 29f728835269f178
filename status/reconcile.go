// Package status turns raw document records into the lifecycle state a
// viewer should render.
package status

import "github.com/Areen-09/legal-doc-demystifier/model"

// Phase is the normalized lifecycle state of a document
type Phase string

const (
	Processing Phase = "processing"
	Ready      Phase = "ready"
	Failed     Phase = "failed"
	Rejected   Phase = "rejected"
)

const (
	MaskedRejectionMessage = "File rejected: this does not appear to be a legal document."
	DefaultFailureMessage  = "Document processing failed."
	DefaultRejectMessage   = "File rejected."
	NotFoundMessage        = "Document not found."
)

// State is what presentation renders. Insights is set only when Phase is
// Ready, Message only when Failed or Rejected.
type State struct {
	Phase    Phase                `json:"phase"`
	Insights *model.InsightBundle `json:"insights,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// Terminal reports whether no further revision is expected to change the phase
func (s State) Terminal() bool {
	return s.Phase != Processing
}

// Reconcile maps a record onto a State. It never mutates rec and returns the
// same State for the same input.
func Reconcile(rec *model.DocumentRecord) State {
	if rec == nil {
		return State{Phase: Failed, Message: NotFoundMessage}
	}

	switch rec.UploadStatus {
	case model.StatusProcessing:
		return State{Phase: Processing}
	case model.StatusCompleted:
		if rec.Insights.HasSummary() {
			return State{Phase: Ready, Insights: rec.Insights.Clone()}
		}
		return maskedRejection()
	case model.StatusFailed:
		msg := rec.StatusMessage
		if msg == "" {
			msg = DefaultFailureMessage
		}
		return State{Phase: Failed, Message: msg}
	case model.StatusRejected:
		msg := rec.StatusMessage
		if msg == "" {
			msg = DefaultRejectMessage
		}
		return State{Phase: Rejected, Message: msg}
	}

	// Unknown raw statuses are still in flight as far as the viewer can tell.
	return State{Phase: Processing}
}

// maskedRejection corrects the analysis service marking unanalyzable input as
// COMPLETED without writing insights.
func maskedRejection() State {
	return State{Phase: Rejected, Message: MaskedRejectionMessage}
}
