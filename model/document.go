package model

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentRecord is the metadata record of one uploaded legal document
type DocumentRecord struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	FileName      string         `json:"fileName"`
	FileSize      int64          `json:"fileSize"`
	FileType      FileType       `json:"fileType"`
	UploadStatus  UploadStatus   `json:"uploadStatus"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	BinaryPath    string         `json:"binaryPath"`
	HTMLContent   string         `json:"htmlContent,omitempty"`
	Insights      *InsightBundle `json:"insights,omitempty"`
	Revision      int64          `json:"revision"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy so subscribers can't alias store state
func (r *DocumentRecord) Clone() *DocumentRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Insights = r.Insights.Clone()
	return &out
}

// UploadStatus is the authoritative lifecycle state written to the record
type UploadStatus string

const (
	StatusProcessing UploadStatus = "PROCESSING"
	StatusCompleted  UploadStatus = "COMPLETED"
	StatusFailed     UploadStatus = "FAILED"
	StatusRejected   UploadStatus = "REJECTED"
)

// FileType is the kind of document that was uploaded
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeTXT  FileType = "txt"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeTXT  = "text/plain"
)

// DetectFileType resolves the file type from the extension, falling back to
// the declared content type. ok is false for anything else.
func DetectFileType(fileName, contentType string) (FileType, bool) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FileTypePDF, true
	case ".docx":
		return FileTypeDOCX, true
	case ".txt":
		return FileTypeTXT, true
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "pdf"):
		return FileTypePDF, true
	case strings.Contains(ct, "openxmlformats-officedocument.wordprocessingml"):
		return FileTypeDOCX, true
	case strings.HasPrefix(ct, "text/"):
		return FileTypeTXT, true
	}
	return "", false
}

// MimeType returns the canonical content type sent to storage and analysis
func (t FileType) MimeType() string {
	switch t {
	case FileTypePDF:
		return MimePDF
	case FileTypeDOCX:
		return MimeDOCX
	case FileTypeTXT:
		return MimeTXT
	}
	return "application/octet-stream"
}

// FixedLayout reports whether the type is rendered as paginated pages from
// the stored binary rather than from HTMLContent.
func (t FileType) FixedLayout() bool {
	return t == FileTypePDF
}

// Patch is a field-level partial update. Nil fields are left untouched so two
// writers owning different fields never clobber each other.
type Patch struct {
	UploadStatus  *UploadStatus
	StatusMessage *string
	BinaryPath    *string
	HTMLContent   *string
	Insights      *InsightBundle
}

// Empty reports whether the patch would write nothing
func (p Patch) Empty() bool {
	return p.UploadStatus == nil && p.StatusMessage == nil && p.BinaryPath == nil &&
		p.HTMLContent == nil && p.Insights == nil
}

// Apply writes the set fields onto r
func (p Patch) Apply(r *DocumentRecord) {
	if p.UploadStatus != nil {
		r.UploadStatus = *p.UploadStatus
	}
	if p.StatusMessage != nil {
		r.StatusMessage = *p.StatusMessage
	}
	if p.BinaryPath != nil {
		r.BinaryPath = *p.BinaryPath
	}
	if p.HTMLContent != nil {
		r.HTMLContent = *p.HTMLContent
	}
	if p.Insights != nil {
		r.Insights = p.Insights.Clone()
	}
}

// StatusPatch sets the upload status together with its message
func StatusPatch(status UploadStatus, message string) Patch {
	return Patch{UploadStatus: &status, StatusMessage: &message}
}

// BinaryPathPatch commits the stored binary locator
func BinaryPathPatch(path string) Patch {
	return Patch{BinaryPath: &path}
}
