package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"EchoFM/catalog"
	"EchoFM/config"
	"EchoFM/core/ingest"
	"EchoFM/storage"
)

const testAdminToken = "test-admin-token"

// stubConverter stands in for ffmpeg: it writes the result file next to
// the input the way the real processor does.
type stubConverter struct{}

func (stubConverter) Convert(ctx context.Context, inputPath string) (string, error) {
	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".mp3"
	if outputPath == inputPath {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".conv.mp3"
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", err
	}
	return outputPath, nil
}

type testEnv struct {
	router   *mux.Router
	registry *catalog.Registry
	blobs    *storage.FSStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	registry := catalog.NewRegistry(nil)
	moderator := catalog.NewModerator(registry, blobs)
	ingestSvc := ingest.NewService(blobs, registry, stubConverter{}, 1<<20)

	cfg := &config.Config{
		AdminToken:     testAdminToken,
		MaxUploadBytes: 1 << 20,
	}

	handler := NewAPIHandler(ingestSvc, registry, moderator, blobs, nil, cfg)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, registry: registry, blobs: blobs}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// upload posts a multipart file and returns the assigned track id.
func (e *testEnv) upload(t *testing.T, filename string, payload []byte) string {
	t.Helper()
	rec := e.uploadRaw(t, filename, payload, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload %s: expected 201, got %d: %s", filename, rec.Code, rec.Body.String())
	}
	var resp struct {
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("upload %s: bad response body: %v", filename, err)
	}
	if resp.Filename == "" {
		t.Fatalf("upload %s: response carries no filename", filename)
	}
	return resp.Filename
}

// uploadRaw posts a multipart upload and returns the raw recorder so tests
// can assert on failures too. An empty filename omits the file part.
func (e *testEnv) uploadRaw(t *testing.T, filename string, payload []byte, uploader string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if filename != "" {
		part, err := writer.CreateFormFile("song", filename)
		if err != nil {
			t.Fatalf("failed to build form file: %v", err)
		}
		if _, err := part.Write(payload); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if uploader != "" {
		if err := writer.WriteField("uploader", uploader); err != nil {
			t.Fatalf("failed to write uploader field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/songs", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.do(t, req)
}

// seedApproved uploads a track and pushes it through approval.
func (e *testEnv) seedApproved(t *testing.T, filename string, payload []byte) string {
	t.Helper()
	id := e.upload(t, filename, payload)
	e.approve(t, id)
	return id
}

func (e *testEnv) approve(t *testing.T, id string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/songs/%s/approve", id), nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	rec := e.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve %s: expected 200, got %d: %s", id, rec.Code, rec.Body.String())
	}
}
