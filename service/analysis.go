package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Areen-09/legal-doc-demystifier/config"
	"github.com/Areen-09/legal-doc-demystifier/model"
)

// APIError is a non-200 reply from the analysis service
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "Backend processing failed: " + e.Body
}

type AnalysisService struct {
	config     *config.AnalysisConfig
	httpClient *http.Client
}

// QueryRequest is the body sent to the query endpoint
type QueryRequest struct {
	Query       string           `json:"query"`
	DocID       string           `json:"docId"`
	ChatHistory []model.ChatTurn `json:"chatHistory"`
}

type queryResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error"`
}

// CallbackPayload is the analysis service's asynchronous terminal write
type CallbackPayload struct {
	DocumentID string `json:"docId"`
	Checksum   string `json:"checksum"`
	Content    string `json:"content"`
}

// CallbackContent is the decoded Content of a callback
type CallbackContent struct {
	UploadStatus  model.UploadStatus   `json:"uploadStatus"`
	StatusMessage *string              `json:"statusMessage,omitempty"`
	HTMLContent   *string              `json:"htmlContent,omitempty"`
	Insights      *model.InsightBundle `json:"insights,omitempty"`
}

func NewAnalysisService(cfg *config.AnalysisConfig) *AnalysisService {
	return &AnalysisService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}
}

// ProcessDocument asks the analysis service to process a committed binary.
// It returns once the service replies; results land in the record store.
func (s *AnalysisService) ProcessDocument(ctx context.Context, bucket, filePath, mimeType string) error {
	params := url.Values{}
	params.Set("bucket_name", bucket)
	params.Set("file_path", filePath)
	params.Set("mime_type", mimeType)

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/process-document?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// Query relays a question about docID on behalf of the token's owner
func (s *AnalysisService) Query(ctx context.Context, token, docID, question string, history []model.ChatTurn) (string, error) {
	if history == nil {
		history = []model.ChatTurn{}
	}
	jsonData, err := json.Marshal(QueryRequest{Query: question, DocID: docID, ChatHistory: history})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.QueryURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result queryResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(body, &result) == nil && result.Error != "" {
			return "", &APIError{StatusCode: resp.StatusCode, Body: result.Error}
		}
		text := strings.TrimSpace(string(body))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}
		return "", &APIError{StatusCode: resp.StatusCode, Body: text}
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Answer, nil
}

// VerifyCallback verifies the callback checksum
func (s *AnalysisService) VerifyCallback(checksum, content, docID string) bool {
	// Checksum = SHA256(docID + seed + content)
	hash := sha256.Sum256([]byte(docID + s.config.CallbackSeed + content))
	return checksum == hex.EncodeToString(hash[:])
}

// ParseCallbackContent decodes a verified callback into a field-level patch
func ParseCallbackContent(content string) (model.Patch, error) {
	var c CallbackContent
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return model.Patch{}, fmt.Errorf("failed to parse callback content: %w", err)
	}

	var patch model.Patch
	switch c.UploadStatus {
	case "":
	case model.StatusProcessing, model.StatusCompleted, model.StatusFailed, model.StatusRejected:
		status := c.UploadStatus
		patch.UploadStatus = &status
	default:
		return model.Patch{}, fmt.Errorf("unknown upload status %q", c.UploadStatus)
	}
	patch.StatusMessage = c.StatusMessage
	patch.HTMLContent = c.HTMLContent
	patch.Insights = c.Insights

	if patch.Empty() {
		return model.Patch{}, fmt.Errorf("callback content carries no fields")
	}
	return patch, nil
}
