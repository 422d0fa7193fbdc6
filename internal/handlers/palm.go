package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/auth"
)

// maxPalmImageBytes caps an uploaded palm image.
const maxPalmImageBytes = 10 << 20

// Analysis is one queued palm reading.
type Analysis struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Status    string    `json:"status"`
	Filename  string    `json:"filename,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisHandlers serves the palm-reading endpoints. Submissions are
// queued in memory; the vision pipeline consumes them out of band.
type AnalysisHandlers struct {
	mu       sync.RWMutex
	analyses map[string]*Analysis
}

// NewAnalysisHandlers creates a new analysis handlers instance
func NewAnalysisHandlers() *AnalysisHandlers {
	return &AnalysisHandlers{analyses: make(map[string]*Analysis)}
}

// CreateAnalysis accepts a multipart palm image upload and queues it
func (h *AnalysisHandlers) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPalmImageBytes); err != nil {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("expected multipart form upload"), nil)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("image file is required"), nil)
		return
	}
	defer file.Close()

	analysis := &Analysis{
		ID:        uuid.New().String(),
		UserID:    auth.GetUserID(r.Context()),
		Status:    "queued",
		Filename:  header.Filename,
		SizeBytes: header.Size,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.analyses[analysis.ID] = analysis
	h.mu.Unlock()

	WriteSuccess(w, analysis, http.StatusAccepted)
}

// GetAnalysis returns a queued analysis by ID
func (h *AnalysisHandlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	h.mu.RLock()
	analysis, ok := h.analyses[id]
	h.mu.RUnlock()
	if !ok {
		WriteError(w, r, http.StatusNotFound, fmt.Errorf("analysis not found"), nil)
		return
	}

	WriteSuccess(w, analysis, http.StatusOK)
}

// MessageRequest is a follow-up question on a conversation
type MessageRequest struct {
	Content string `json:"content"`
}

// MessageResponse acknowledges a queued follow-up
type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateMessage queues a follow-up question on a conversation
func (h *AnalysisHandlers) CreateMessage(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("content is required"), nil)
		return
	}

	WriteSuccess(w, MessageResponse{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        "Your follow-up question has been queued.",
		CreatedAt:      time.Now(),
	}, http.StatusAccepted)
}
