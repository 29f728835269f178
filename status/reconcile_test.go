package status

import (
	"reflect"
	"testing"

	"github.com/Areen-09/legal-doc-demystifier/model"
)

func TestReconcile(t *testing.T) {
	full := &model.InsightBundle{Summary: "A residential lease."}

	tests := []struct {
		name     string
		record   *model.DocumentRecord
		expected State
	}{
		{
			name:     "processing",
			record:   &model.DocumentRecord{UploadStatus: model.StatusProcessing},
			expected: State{Phase: Processing},
		},
		{
			name:     "processing ignores early insights",
			record:   &model.DocumentRecord{UploadStatus: model.StatusProcessing, Insights: full},
			expected: State{Phase: Processing},
		},
		{
			name:     "completed with insights",
			record:   &model.DocumentRecord{UploadStatus: model.StatusCompleted, Insights: full},
			expected: State{Phase: Ready, Insights: full},
		},
		{
			name:     "completed without insights is masked rejection",
			record:   &model.DocumentRecord{UploadStatus: model.StatusCompleted},
			expected: State{Phase: Rejected, Message: MaskedRejectionMessage},
		},
		{
			name:     "completed with empty summary is masked rejection",
			record:   &model.DocumentRecord{UploadStatus: model.StatusCompleted, Insights: &model.InsightBundle{KeyTerms: []model.KeyTerm{{Term: "x"}}}},
			expected: State{Phase: Rejected, Message: MaskedRejectionMessage},
		},
		{
			name:     "failed with message",
			record:   &model.DocumentRecord{UploadStatus: model.StatusFailed, StatusMessage: "connection reset"},
			expected: State{Phase: Failed, Message: "connection reset"},
		},
		{
			name:     "failed without message",
			record:   &model.DocumentRecord{UploadStatus: model.StatusFailed},
			expected: State{Phase: Failed, Message: DefaultFailureMessage},
		},
		{
			name:     "rejected with message",
			record:   &model.DocumentRecord{UploadStatus: model.StatusRejected, StatusMessage: "Not a contract."},
			expected: State{Phase: Rejected, Message: "Not a contract."},
		},
		{
			name:     "rejected without message",
			record:   &model.DocumentRecord{UploadStatus: model.StatusRejected, Insights: full},
			expected: State{Phase: Rejected, Message: DefaultRejectMessage},
		},
		{
			name:     "unknown status",
			record:   &model.DocumentRecord{UploadStatus: "QUEUED"},
			expected: State{Phase: Processing},
		},
		{
			name:     "missing record",
			record:   nil,
			expected: State{Phase: Failed, Message: NotFoundMessage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.record)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

// Every raw status crossed with every insights shape must be handled,
// deterministically, without touching the record.
func TestReconcileTotalAndPure(t *testing.T) {
	statuses := []model.UploadStatus{model.StatusProcessing, model.StatusCompleted, model.StatusFailed, model.StatusRejected}
	bundles := []*model.InsightBundle{
		nil,
		{},
		{Summary: ""},
		{Summary: "Summary.", KeyTerms: []model.KeyTerm{{Term: "Term", Risk: model.RiskLow}}},
	}

	for _, st := range statuses {
		for _, b := range bundles {
			rec := &model.DocumentRecord{ID: "doc", UploadStatus: st, StatusMessage: "msg", Insights: b}
			before := rec.Clone()

			first := Reconcile(rec)
			second := Reconcile(rec)

			if !reflect.DeepEqual(first, second) {
				t.Errorf("Expected deterministic result for %s, got %+v then %+v", st, first, second)
			}
			if !reflect.DeepEqual(rec, before) {
				t.Errorf("Expected record to be unchanged for %s", st)
			}
			if first.Phase == "" {
				t.Errorf("Expected a phase for %s", st)
			}
			if st == model.StatusCompleted && !b.HasSummary() {
				if first.Phase != Rejected || first.Message != MaskedRejectionMessage {
					t.Errorf("Expected masked rejection, got %+v", first)
				}
			}
		}
	}
}

func TestReadyStateDoesNotAliasRecord(t *testing.T) {
	rec := &model.DocumentRecord{
		UploadStatus: model.StatusCompleted,
		Insights:     &model.InsightBundle{Summary: "s", SuggestedQuestions: []string{"q"}},
	}

	st := Reconcile(rec)
	st.Insights.SuggestedQuestions[0] = "changed"

	if rec.Insights.SuggestedQuestions[0] != "q" {
		t.Error("Expected record insights to be untouched")
	}
}

func TestTerminal(t *testing.T) {
	if (State{Phase: Processing}).Terminal() {
		t.Error("Expected processing to be non-terminal")
	}
	for _, p := range []Phase{Ready, Failed, Rejected} {
		if !(State{Phase: p}).Terminal() {
			t.Errorf("Expected %s to be terminal", p)
		}
	}
}
