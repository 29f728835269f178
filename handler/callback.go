package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Areen-09/legal-doc-demystifier/model"
	"github.com/Areen-09/legal-doc-demystifier/pkg/logger"
	"github.com/Areen-09/legal-doc-demystifier/service"
	"github.com/gin-gonic/gin"
)

// CallbackVerifier checks the signature on an analysis callback
type CallbackVerifier interface {
	VerifyCallback(checksum, content, docID string) bool
}

// RecordUpdater applies field-level patches to document records
type RecordUpdater interface {
	Update(ctx context.Context, id string, patch model.Patch) error
}

type CallbackHandler struct {
	verifier CallbackVerifier
	records  RecordUpdater
}

func NewCallbackHandler(verifier CallbackVerifier, records RecordUpdater) *CallbackHandler {
	return &CallbackHandler{
		verifier: verifier,
		records:  records,
	}
}

// HandleCallback applies the analysis service's asynchronous write to the
// document record. Only the fields present in the content are touched.
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	var req service.CallbackPayload
	if err := c.ShouldBindJSON(&req); err != nil || req.DocumentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	ctx := logger.WithDocument(c.Request.Context(), req.DocumentID)
	if !h.verifier.VerifyCallback(req.Checksum, req.Content, req.DocumentID) {
		logger.Warn(ctx, "callback checksum mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid checksum"})
		return
	}

	patch, err := service.ParseCallbackContent(req.Content)
	if err != nil {
		logger.Warn(ctx, "invalid callback content", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid content format"})
		return
	}

	if err := h.records.Update(ctx, req.DocumentID, patch); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		logger.Error(ctx, "failed to apply callback", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update document"})
		return
	}

	attrs := []any{}
	if patch.UploadStatus != nil {
		attrs = append(attrs, "upload_status", *patch.UploadStatus)
	}
	logger.Info(ctx, "callback applied", attrs...)
	c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}
