package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Areen-09/legal-doc-demystifier/config"
)

func newTestMinio(t *testing.T, handler http.HandlerFunc) *MinioService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewMinioService(&config.MinioConfig{
		Endpoint:   strings.TrimPrefix(server.URL, "http://"),
		AccessKey:  "test",
		SecretKey:  "test-secret",
		Bucket:     "documents",
		Region:     "us-east-1",
		UseSSL:     false,
		ExpireDays: 7,
	})
	if err != nil {
		t.Fatalf("NewMinioService failed: %v", err)
	}
	return svc
}

func TestNewMinioService(t *testing.T) {
	cfg := &config.MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "test",
		Region:    "us-east-1",
	}

	svc, err := NewMinioService(cfg)
	if err != nil {
		t.Fatalf("NewMinioService failed: %v", err)
	}
	if svc.Bucket() != "test" {
		t.Errorf("Expected bucket test, got %s", svc.Bucket())
	}
}

func TestMinioServiceUploadResumableReportsProgress(t *testing.T) {
	var (
		mu       sync.Mutex
		gotPath  string
		gotBytes int
		gotType  string
	)
	svc := newTestMinio(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBytes = len(body)
		gotType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	})

	content := strings.Repeat("clause ", 2048)
	var reports []int64
	err := svc.UploadResumable(context.Background(), "user-1/doc-1/lease.pdf", strings.NewReader(content), int64(len(content)), "application/pdf", func(n int64) {
		reports = append(reports, n)
	})
	if err != nil {
		t.Fatalf("UploadResumable failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotPath != "/documents/user-1/doc-1/lease.pdf" {
		t.Errorf("Expected object path, got %s", gotPath)
	}
	if gotBytes == 0 {
		t.Error("Expected body to reach the server")
	}
	if gotType != "application/pdf" {
		t.Errorf("Expected content type application/pdf, got %s", gotType)
	}
	if len(reports) == 0 {
		t.Fatal("Expected progress reports")
	}
	if reports[len(reports)-1] < int64(len(content)) {
		t.Errorf("Expected progress to cover %d bytes, got %d", len(content), reports[len(reports)-1])
	}
}

func TestMinioServiceUploadResumableFailure(t *testing.T) {
	svc := newTestMinio(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`)
	})

	err := svc.UploadResumable(context.Background(), "user-1/doc-1/lease.pdf", strings.NewReader("x"), 1, "application/pdf", nil)
	if err == nil {
		t.Fatal("Expected upload error")
	}
	if !strings.Contains(err.Error(), "failed to upload file") {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestMinioServiceResolveDownloadURL(t *testing.T) {
	svc := newTestMinio(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("Presigning must not hit the server, got %s %s", r.Method, r.URL.Path)
	})

	url, err := svc.ResolveDownloadURL(context.Background(), "user-1/doc-1/lease.pdf")
	if err != nil {
		t.Fatalf("ResolveDownloadURL failed: %v", err)
	}
	if !strings.Contains(url, "/documents/user-1/doc-1/lease.pdf") {
		t.Errorf("Expected object path in url, got %s", url)
	}
	if !strings.Contains(url, "X-Amz-Signature=") {
		t.Errorf("Expected presigned url, got %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=604800") {
		t.Errorf("Expected 7 day expiry, got %s", url)
	}
}

func TestProgressReaderAccumulates(t *testing.T) {
	var last int64
	p := &progressReader{fn: func(n int64) { last = n }}

	buf := make([]byte, 10)
	p.Read(buf)
	p.Read(buf[:5])

	if last != 15 {
		t.Errorf("Expected 15 bytes, got %d", last)
	}
}
