package ingest

import (
	"errors"
	"fmt"

	"github.com/Areen-09/legal-doc-demystifier/model"
)

// Stage names the ingestion step a failure happened in
type Stage string

const (
	StageRegister Stage = "register"
	StageTransfer Stage = "transfer"
	StageCommit   Stage = "commit"
	StageAnalyze  Stage = "analyze"
	StageFinalize Stage = "finalize"
)

var (
	ErrUnauthenticated     = model.ErrUnauthenticated
	ErrNoFile              = errors.New("no file provided for upload")
	ErrUnsupportedFileType = errors.New("unsupported file type, only PDF, DOCX and TXT are allowed")
	ErrFileTooLarge        = errors.New("file exceeds the upload size limit")
)

// Error is an ingestion failure. Except for StageRegister, the failure has
// already been recorded on the document before Error is returned.
type Error struct {
	Stage Stage
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Stage, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsStage reports whether err is an ingestion failure at stage
func IsStage(err error, stage Stage) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Stage == stage
}
