package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/user/reelbot/internal/gateway"
	"github.com/user/reelbot/internal/store"
	"github.com/user/reelbot/internal/types"
)

// SubmitFunc schedules a generation and reports the result through onResult.
type SubmitFunc func(ctx context.Context, req *types.GenerationRequest, onResult func(*gateway.Result)) error

// Server is a lightweight HTTP handler for the generation API.
type Server struct {
	submit SubmitFunc
	videos *store.VideoStore
	mux    *http.ServeMux
}

// NewServer creates a new webhook Server around the submit callback.
func NewServer(submit SubmitFunc, videos *store.VideoStore) *Server {
	s := &Server{
		submit: submit,
		videos: videos,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /generate", s.handleGenerate)
	s.mux.HandleFunc("GET /videos", s.handleVideos)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// generateRequest is the JSON body for POST /generate.
type generateRequest struct {
	Prompt       string `json:"prompt"`
	ImageDataURI string `json:"image_data_uri"`
	UserID       string `json:"user_id"`
	GroupID      string `json:"group_id"`
}

type generateResponse struct {
	ArtifactID string `json:"artifact_id"`
	VideoURL   string `json:"video_url"`
	LocalPath  string `json:"local_path,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Prompt == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "prompt and user_id are required")
		return
	}

	results := make(chan *gateway.Result, 1)
	genReq := &types.GenerationRequest{
		Prompt:       req.Prompt,
		ImageDataURI: req.ImageDataURI,
		UserID:       req.UserID,
		GroupID:      req.GroupID,
		ChatKey:      types.NewChatKey("http", req.UserID),
	}
	if err := s.submit(r.Context(), genReq, func(res *gateway.Result) {
		results <- res
	}); err != nil {
		writeError(w, rejectionStatus(err), gateway.UserMessage(err))
		return
	}

	select {
	case res := <-results:
		if res.Err != nil {
			writeError(w, http.StatusBadGateway, gateway.UserMessage(res.Err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse{
			ArtifactID: string(res.Artifact.ID),
			VideoURL:   res.Artifact.RemoteURL,
			LocalPath:  res.Artifact.LocalPath,
		})
	case <-r.Context().Done():
		slog.Warn("generate request abandoned by client", "user_id", req.UserID)
	}
}

// rejectionStatus maps a synchronous gateway rejection to an HTTP status.
func rejectionStatus(err error) int {
	var accessErr *gateway.AccessError
	switch {
	case errors.Is(err, gateway.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrDisabled):
		return http.StatusForbidden
	case errors.As(err, &accessErr):
		switch accessErr.Kind {
		case gateway.AccessRate:
			return http.StatusTooManyRequests
		case gateway.AccessBudget:
			return http.StatusBadRequest
		default:
			return http.StatusForbidden
		}
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if s.videos == nil {
		writeError(w, http.StatusServiceUnavailable, "video store not configured")
		return
	}
	paths, err := s.videos.List()
	if err != nil {
		slog.Error("list videos failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"videos": names})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
