// Package chat relays follow-up questions about a document to the analysis
// query endpoint and keeps the resulting transcript.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Areen-09/legal-doc-demystifier/model"
	"github.com/Areen-09/legal-doc-demystifier/pkg/logger"
	"github.com/Areen-09/legal-doc-demystifier/service"
)

var (
	ErrSessionClosed   = errors.New("chat session closed")
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrUnauthenticated = model.ErrUnauthenticated
)

// ErrorTurnPrefix starts the assistant turn that stands in for a failed answer
const ErrorTurnPrefix = "Sorry, I couldn't answer that: "

// Querier answers a question about one document
type Querier interface {
	Query(ctx context.Context, token, docID, question string, history []model.ChatTurn) (string, error)
}

// QueryError is a failed ask. Reason is safe to show to the user.
type QueryError struct {
	Reason string
	Err    error
}

func (e *QueryError) Error() string {
	return "query failed: " + e.Reason
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Ask sends question with the prior transcript and returns the answer and
// the transcript grown by two turns. On failure the second turn is an
// assistant error summary and err is a *QueryError. prior is not modified.
func Ask(ctx context.Context, q Querier, token, documentID, question string, prior []model.ChatTurn) (string, []model.ChatTurn, error) {
	if strings.TrimSpace(question) == "" {
		return "", cloneTurns(prior), ErrEmptyQuestion
	}

	answer, err := q.Query(ctx, token, documentID, question, prior)

	transcript := make([]model.ChatTurn, 0, len(prior)+2)
	transcript = append(transcript, prior...)
	transcript = append(transcript, model.ChatTurn{Role: model.RoleUser, Content: question})

	if err != nil {
		reason := failureReason(err)
		logger.Warn(ctx, "document query failed", "document_id", documentID, "error", err)
		transcript = append(transcript, model.ChatTurn{Role: model.RoleAssistant, Content: ErrorTurnPrefix + reason})
		return "", transcript, &QueryError{Reason: reason, Err: err}
	}

	transcript = append(transcript, model.ChatTurn{Role: model.RoleAssistant, Content: answer})
	return answer, transcript, nil
}

func failureReason(err error) string {
	var apiErr *service.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the analysis service took too long to respond"
	}
	return "the analysis service could not be reached"
}

func cloneTurns(turns []model.ChatTurn) []model.ChatTurn {
	return append([]model.ChatTurn(nil), turns...)
}

// Session is a per-document conversation. The transcript lives only as long
// as the session.
type Session struct {
	querier    Querier
	identity   model.IdentityProvider
	documentID string

	mu         sync.Mutex
	transcript []model.ChatTurn
	closed     bool
}

func NewSession(q Querier, identity model.IdentityProvider, documentID string) *Session {
	return &Session{querier: q, identity: identity, documentID: documentID}
}

// Ask asks on behalf of the current identity. A failed query still extends
// the transcript; the session stays usable.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSessionClosed
	}
	prior := cloneTurns(s.transcript)
	s.mu.Unlock()

	if s.identity == nil {
		return "", ErrUnauthenticated
	}
	id, ok := s.identity.CurrentIdentity(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}

	answer, next, err := Ask(ctx, s.querier, id.Token, s.documentID, question, prior)
	if errors.Is(err, ErrEmptyQuestion) {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	s.transcript = append(s.transcript, next[len(prior):]...)
	return answer, err
}

// Transcript returns a copy of the turns so far
func (s *Session) Transcript() []model.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTurns(s.transcript)
}

// Close ends the session; answers still in flight are discarded
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.transcript = nil
	s.mu.Unlock()
}
