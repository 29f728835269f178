package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Areen-09/legal-doc-demystifier/chat"
	"github.com/Areen-09/legal-doc-demystifier/highlight"
	"github.com/Areen-09/legal-doc-demystifier/ingest"
	"github.com/Areen-09/legal-doc-demystifier/middleware"
	"github.com/Areen-09/legal-doc-demystifier/model"
	"github.com/Areen-09/legal-doc-demystifier/pkg/logger"
	"github.com/Areen-09/legal-doc-demystifier/service"
	"github.com/Areen-09/legal-doc-demystifier/status"
	"github.com/Areen-09/legal-doc-demystifier/viewer"
	"github.com/gin-gonic/gin"
)

// multipart overhead allowed on top of the file size limit
const formSlack = 1 << 20

const heartbeatInterval = 15 * time.Second

// RecordReader looks up document records for the HTTP surface
type RecordReader interface {
	Get(ctx context.Context, id string) (*model.DocumentRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.DocumentRecord, error)
}

// Ingester runs an upload on behalf of the caller in ctx
type Ingester interface {
	IngestCurrent(ctx context.Context, up ingest.Upload, onProgress func(int)) (string, error)
}

// Watcher streams reconciled views of a document
type Watcher interface {
	Watch(ctx context.Context, documentID string, emit func(viewer.View)) (func(), error)
}

type DocumentHandler struct {
	records  RecordReader
	ingester Ingester
	watcher  Watcher
	querier  chat.Querier
	maxBytes int64

	sessionsMu sync.Mutex
	sessions   map[sessionKey]*chat.Session
}

type sessionKey struct {
	ownerID    string
	documentID string
}

func NewDocumentHandler(records RecordReader, ingester Ingester, watcher Watcher, querier chat.Querier, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{
		records:  records,
		ingester: ingester,
		watcher:  watcher,
		querier:  querier,
		maxBytes: maxBytes,
		sessions: make(map[sessionKey]*chat.Session),
	}
}

// DocumentSummary is a record without its analysis payload
type DocumentSummary struct {
	ID            string             `json:"id"`
	FileName      string             `json:"fileName"`
	FileSize      int64              `json:"fileSize"`
	FileType      model.FileType     `json:"fileType"`
	UploadStatus  model.UploadStatus `json:"uploadStatus"`
	StatusMessage string             `json:"statusMessage,omitempty"`
	Phase         status.Phase       `json:"phase"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func summarize(rec *model.DocumentRecord) DocumentSummary {
	return DocumentSummary{
		ID:            rec.ID,
		FileName:      rec.FileName,
		FileSize:      rec.FileSize,
		FileType:      rec.FileType,
		UploadStatus:  rec.UploadStatus,
		StatusMessage: rec.StatusMessage,
		Phase:         status.Reconcile(rec).Phase,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

type uploadResult struct {
	id  string
	err error
}

// Upload ingests the multipart "file". With Accept: text/event-stream the
// response is a stream of progress events closed by a done or error event.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+formSlack)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": ingest.ErrFileTooLarge.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	up := ingest.Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}
	ctx := c.Request.Context()

	if !wantsStream(c) {
		id, err := h.ingester.IngestCurrent(ctx, up, nil)
		if err != nil {
			code, body := uploadError(id, err)
			c.JSON(code, body)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "fileName": up.Name, "phase": status.Processing})
		return
	}

	// every percentage is reported at most once, so 101 slots never fill
	progress := make(chan int, 101)
	done := make(chan uploadResult, 1)
	go func() {
		id, err := h.ingester.IngestCurrent(ctx, up, func(p int) {
			select {
			case progress <- p:
			default:
			}
		})
		done <- uploadResult{id, err}
	}()

	startStream(c)
	for {
		select {
		case p := <-progress:
			c.SSEvent("progress", gin.H{"percent": p})
			c.Writer.Flush()
		case r := <-done:
			for drained := false; !drained; {
				select {
				case p := <-progress:
					c.SSEvent("progress", gin.H{"percent": p})
				default:
					drained = true
				}
			}
			if r.err != nil {
				_, body := uploadError(r.id, r.err)
				c.SSEvent("error", body)
			} else {
				c.SSEvent("done", gin.H{"id": r.id})
			}
			c.Writer.Flush()
			return
		case <-ctx.Done():
			// the ingest carries on without the client once registered, and
			// still reads the form file
			r := <-done
			logger.Info(ctx, "upload finished after client left", "document_id", r.id, "error", r.err)
			return
		}
	}
}

func uploadError(id string, err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}
	if id != "" {
		body["id"] = id
	}

	var ie *ingest.Error
	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized, body
	case errors.Is(err, ingest.ErrNoFile):
		return http.StatusBadRequest, body
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return http.StatusUnsupportedMediaType, body
	case errors.Is(err, ingest.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, body
	case errors.As(err, &ie):
		// the stored status message is the cause, so show the same text
		body["error"] = ie.Cause.Error()
		body["stage"] = ie.Stage
		if ie.Stage == ingest.StageAnalyze || ie.Stage == ingest.StageTransfer {
			return http.StatusBadGateway, body
		}
		return http.StatusInternalServerError, body
	}
	return http.StatusInternalServerError, body
}

// List returns the caller's documents, newest first
func (h *DocumentHandler) List(c *gin.Context) {
	records, err := h.records.ListByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list documents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
		return
	}

	documents := make([]DocumentSummary, 0, len(records))
	for _, rec := range records {
		documents = append(documents, summarize(rec))
	}
	c.JSON(http.StatusOK, gin.H{"documents": documents})
}

// Get returns one document with its reconciled state
func (h *DocumentHandler) Get(c *gin.Context) {
	rec, ok := h.ownRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document": summarize(rec),
		"state":    status.Reconcile(rec),
	})
}

// View streams the live view of a document until the client leaves
func (h *DocumentHandler) View(c *gin.Context) {
	ctx := c.Request.Context()

	// newest view wins; emit must never block the watch loop
	views := make(chan viewer.View, 1)
	emit := func(v viewer.View) {
		select {
		case views <- v:
		default:
			select {
			case <-views:
			default:
			}
			views <- v
		}
	}

	detach, err := h.watcher.Watch(ctx, c.Param("id"), emit)
	if err != nil {
		if errors.Is(err, model.ErrUnauthenticated) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		logger.Error(ctx, "failed to watch document", "document_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": viewer.SubscriptionAdvisory})
		return
	}
	defer detach()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	startStream(c)
	for {
		select {
		case v := <-views:
			c.SSEvent("view", v)
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"time": time.Now().Unix()})
		case <-ctx.Done():
			return
		}
		c.Writer.Flush()
	}
}

type markerView struct {
	highlight.Marker
	Style string `json:"style"`
	Title string `json:"title"`
}

// Highlights returns the key-term rectangles for one page of a ready
// fixed-layout document.
func (h *DocumentHandler) Highlights(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}

	rec, ok := h.ownRecord(c)
	if !ok {
		return
	}
	state := status.Reconcile(rec)
	if state.Phase != status.Ready {
		c.JSON(http.StatusConflict, gin.H{"error": "Document is not ready", "state": state})
		return
	}

	markers := highlight.PageMarkers(state.Insights.KeyTerms, page)
	out := make([]markerView, 0, len(markers))
	for _, m := range markers {
		out = append(out, markerView{Marker: m, Style: m.Style(), Title: m.Title()})
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "markers": out})
}

// Content returns the flowed HTML rendering with key terms marked once the
// document is ready.
func (h *DocumentHandler) Content(c *gin.Context) {
	rec, ok := h.ownRecord(c)
	if !ok {
		return
	}
	if rec.HTMLContent == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document content not available"})
		return
	}

	var terms []model.KeyTerm
	if state := status.Reconcile(rec); state.Phase == status.Ready {
		terms = state.Insights.KeyTerms
	}
	out, err := highlight.ApplyHTML(rec.HTMLContent, terms)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to highlight content", "document_id", rec.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render document content"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}

type ChatRequest struct {
	Question string           `json:"question"`
	History  []model.ChatTurn `json:"history"`
}

// Chat asks a question about the document. When the request carries a
// history the caller owns the transcript; without one the conversation is
// kept server-side until EndChat. A failed answer is still a 200: the
// transcript carries an error turn and "error" holds the reason.
func (h *DocumentHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	rec, ok := h.ownRecord(c)
	if !ok {
		return
	}
	identity, ok := middleware.ContextIdentity{}.CurrentIdentity(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var (
		answer     string
		transcript []model.ChatTurn
		err        error
	)
	if req.History != nil {
		answer, transcript, err = chat.Ask(c.Request.Context(), h.querier, identity.Token, rec.ID, req.Question, req.History)
	} else {
		session := h.session(rec.OwnerID, rec.ID)
		answer, err = session.Ask(c.Request.Context(), req.Question)
		transcript = session.Transcript()
	}

	switch {
	case errors.Is(err, chat.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question is required"})
		return
	case errors.Is(err, model.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	case errors.Is(err, chat.ErrSessionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "Chat session closed"})
		return
	}

	resp := gin.H{"answer": answer, "transcript": transcript}
	var qe *chat.QueryError
	if errors.As(err, &qe) {
		resp["error"] = qe.Reason
	}
	c.JSON(http.StatusOK, resp)
}

// EndChat closes the server-held conversation for the document
func (h *DocumentHandler) EndChat(c *gin.Context) {
	rec, ok := h.ownRecord(c)
	if !ok {
		return
	}

	key := sessionKey{ownerID: rec.OwnerID, documentID: rec.ID}
	h.sessionsMu.Lock()
	session := h.sessions[key]
	delete(h.sessions, key)
	h.sessionsMu.Unlock()

	if session != nil {
		session.Close()
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) session(ownerID, documentID string) *chat.Session {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()

	key := sessionKey{ownerID: ownerID, documentID: documentID}
	session, ok := h.sessions[key]
	if !ok {
		session = chat.NewSession(h.querier, middleware.ContextIdentity{}, documentID)
		h.sessions[key] = session
	}
	return session
}

// ownRecord loads :id for the caller, answering 404 for documents that are
// missing or belong to someone else.
func (h *DocumentHandler) ownRecord(c *gin.Context) (*model.DocumentRecord, bool) {
	rec, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrDocumentNotFound) || (err == nil && rec.OwnerID != middleware.GetUserID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": status.NotFoundMessage})
		return nil, false
	}
	if err != nil {
		logger.Error(c.Request.Context(), "failed to load document", "document_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": viewer.SubscriptionAdvisory})
		return nil, false
	}
	return rec, true
}

func wantsStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

func startStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()
}
