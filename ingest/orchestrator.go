// Package ingest drives a new upload from metadata registration through
// binary transfer and analysis to its terminal status write.
package ingest

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/Areen-09/legal-doc-demystifier/model"
	"github.com/Areen-09/legal-doc-demystifier/pkg/logger"
	"github.com/Areen-09/legal-doc-demystifier/service"
)

// RecordWriter creates and patches document records
type RecordWriter interface {
	Create(ctx context.Context, ownerID string, initial model.DocumentRecord) (string, error)
	Update(ctx context.Context, id string, patch model.Patch) error
}

// Transferer moves document binaries into blob storage
type Transferer interface {
	Bucket() string
	UploadResumable(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string, onProgress service.ProgressFunc) error
}

// Analyzer starts analysis of a stored binary
type Analyzer interface {
	ProcessDocument(ctx context.Context, bucket, filePath, mimeType string) error
}

// Upload is a file handed to the orchestrator
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

type Options struct {
	// TransferTimeout bounds the binary transfer, 0 = none
	TransferTimeout time.Duration
	// MaxBytes rejects larger uploads before anything is written, 0 = no limit
	MaxBytes int64
}

type Orchestrator struct {
	records  RecordWriter
	storage  Transferer
	analysis Analyzer
	identity model.IdentityProvider
	opts     Options
}

func NewOrchestrator(records RecordWriter, storage Transferer, analysis Analyzer, identity model.IdentityProvider, opts Options) *Orchestrator {
	return &Orchestrator{
		records:  records,
		storage:  storage,
		analysis: analysis,
		identity: identity,
		opts:     opts,
	}
}

// ObjectPath is where the binary of a document is stored
func ObjectPath(ownerID, documentID, fileName string) string {
	return ownerID + "/" + documentID + "/" + fileName
}

// IngestCurrent ingests on behalf of the signed-in caller
func (o *Orchestrator) IngestCurrent(ctx context.Context, up Upload, onProgress func(int)) (string, error) {
	if o.identity == nil {
		return "", ErrUnauthenticated
	}
	id, ok := o.identity.CurrentIdentity(ctx)
	if !ok || id.UserID == "" {
		return "", ErrUnauthenticated
	}
	return o.Ingest(ctx, id.UserID, up, onProgress)
}

// Ingest runs the upload saga for ownerID. onProgress receives whole
// percentages, increasing, ending at 100 when the transfer succeeds.
//
// Once the record is registered its id is returned even on failure, and the
// remaining stages run to a terminal status write regardless of ctx.
func (o *Orchestrator) Ingest(ctx context.Context, ownerID string, up Upload, onProgress func(int)) (string, error) {
	if ownerID == "" {
		return "", ErrUnauthenticated
	}
	if up.Body == nil || strings.TrimSpace(up.Name) == "" {
		return "", ErrNoFile
	}
	fileType, ok := model.DetectFileType(up.Name, up.ContentType)
	if !ok {
		return "", ErrUnsupportedFileType
	}
	if o.opts.MaxBytes > 0 && up.Size > o.opts.MaxBytes {
		return "", ErrFileTooLarge
	}
	mimeType := fileType.MimeType()

	// Stage 1: register
	docID, err := o.records.Create(ctx, ownerID, model.DocumentRecord{
		FileName:     up.Name,
		FileSize:     up.Size,
		FileType:     fileType,
		UploadStatus: model.StatusProcessing,
	})
	if err != nil {
		logger.Error(ctx, "failed to register document", "stage", StageRegister, "error", err)
		return "", &Error{Stage: StageRegister, Cause: err}
	}

	ctx = context.WithoutCancel(logger.WithDocument(ctx, docID))
	logger.Info(ctx, "document registered", "file_name", up.Name, "file_size", up.Size, "file_type", fileType)

	// Stage 2: transfer
	path := ObjectPath(ownerID, docID, up.Name)
	prog := newProgress(up.Size, onProgress)
	prog.report(0)

	if err := o.transfer(ctx, path, up, mimeType, prog); err != nil {
		prog.stop()
		return docID, o.fail(ctx, docID, StageTransfer, err)
	}
	prog.complete()
	logger.Info(ctx, "document transferred", "path", path)

	// Stage 3: commit path
	if err := o.records.Update(ctx, docID, model.BinaryPathPatch(path)); err != nil {
		return docID, o.fail(ctx, docID, StageCommit, err)
	}

	// Stage 4: analyze
	if err := o.analysis.ProcessDocument(ctx, o.storage.Bucket(), path, mimeType); err != nil {
		return docID, o.fail(ctx, docID, StageAnalyze, err)
	}
	logger.Info(ctx, "analysis accepted document")

	// Stage 5: finalize. Field-level, so insights written by the analysis
	// service stay in place.
	if err := o.records.Update(ctx, docID, model.StatusPatch(model.StatusCompleted, "")); err != nil {
		return docID, o.fail(ctx, docID, StageFinalize, err)
	}

	logger.Info(ctx, "document ingested")
	return docID, nil
}

func (o *Orchestrator) transfer(ctx context.Context, path string, up Upload, mimeType string, prog *progress) error {
	if o.opts.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.TransferTimeout)
		defer cancel()
	}
	return o.storage.UploadResumable(ctx, path, up.Body, up.Size, mimeType, prog.transferred)
}

// fail records the failure on the document, then returns it
func (o *Orchestrator) fail(ctx context.Context, docID string, stage Stage, cause error) error {
	msg := cause.Error()
	logger.Error(ctx, "ingestion failed", "stage", stage, "error", cause)

	if err := o.records.Update(ctx, docID, model.StatusPatch(model.StatusFailed, msg)); err != nil {
		logger.Error(ctx, "failed to record ingestion failure", "stage", stage, "error", err)
	}
	return &Error{Stage: stage, Cause: cause}
}
