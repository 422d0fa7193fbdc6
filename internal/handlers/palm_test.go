package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func analysisRouter(h *AnalysisHandlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/analyses", h.CreateAnalysis).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/analyses/{id}", h.GetAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/conversations/{id}/messages", h.CreateMessage).Methods(http.MethodPost)
	return r
}

func multipartImage(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestCreateAndGetAnalysis(t *testing.T) {
	router := analysisRouter(NewAnalysisHandlers())

	body, contentType := multipartImage(t, "image", "left-palm.jpg", "fake jpeg bytes")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	var created Analysis
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if created.ID == "" || created.Status != "queued" {
		t.Fatalf("unexpected analysis: %+v", created)
	}
	if created.Filename != "left-palm.jpg" {
		t.Errorf("filename = %q, want left-palm.jpg", created.Filename)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+created.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var fetched Analysis
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if fetched.ID != created.ID {
		t.Errorf("fetched ID = %q, want %q", fetched.ID, created.ID)
	}
}

func TestCreateAnalysisRejectsBadUploads(t *testing.T) {
	router := analysisRouter(NewAnalysisHandlers())

	// Not multipart at all.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(`{"image":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("json body status = %d, want 400", rec.Code)
	}

	// Multipart without the image field.
	body, contentType := multipartImage(t, "document", "notes.txt", "not an image")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/analyses", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing image status = %d, want 400", rec.Code)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	router := analysisRouter(NewAnalysisHandlers())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreateMessage(t *testing.T) {
	router := analysisRouter(NewAnalysisHandlers())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-42/messages",
		strings.NewReader(`{"content":"What does my heart line mean?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	var resp MessageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.ConversationID != "conv-42" {
		t.Errorf("conversation_id = %q, want conv-42", resp.ConversationID)
	}
	if resp.ID == "" {
		t.Error("expected message ID")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/conversations/conv-42/messages",
		strings.NewReader(`{"content":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank content status = %d, want 400", rec.Code)
	}
}
