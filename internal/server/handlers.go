package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"qusic/pkg/qusic"
)

type NotesRequest struct {
	Notes []string `json:"notes"`
}

type SampleRequest struct {
	Notes []string `json:"notes"`
	Shots int      `json:"shots"`
	Seed  int64    `json:"seed"`
}

type PerformRequest struct {
	Score []string `json:"score"`
	Mode  string   `json:"mode"`
	Shots int      `json:"shots"`
	Seed  int64    `json:"seed"`
	Save  bool     `json:"save"`
}

type PerformResponse struct {
	ID      string     `json:"id"`
	ModelID string     `json:"model_id"`
	Mode    string     `json:"mode"`
	Score   []string   `json:"score"`
	Harmony [][]string `json:"harmony"`
	Saved   bool       `json:"saved"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.client.Models(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, models)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	summary, err := s.client.Inspect(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExpectation(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	expectations, err := s.client.Expectation(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"notes":        req.Notes,
		"expectations": expectations,
	})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	var req SampleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.client.Sample(r.Context(), qusic.SampleRequest{
		Model: chi.URLParam(r, "id"),
		Notes: req.Notes,
		Shots: req.Shots,
		Seed:  req.Seed,
	})
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handlePerform(w http.ResponseWriter, r *http.Request) {
	var req PerformRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	played, err := s.client.Play(r.Context(), qusic.PlayRequest{
		Model: chi.URLParam(r, "id"),
		Score: req.Score,
		Mode:  req.Mode,
		Shots: req.Shots,
		Seed:  req.Seed,
		Save:  req.Save,
	})
	if err != nil {
		s.respondErr(w, err)
		return
	}

	harmony := make([][]string, len(played.Lines))
	for i, line := range played.Lines {
		harmony[i] = line[1]
	}
	respondJSON(w, http.StatusOK, PerformResponse{
		ID:      played.Recording.ID,
		ModelID: played.Recording.ModelID,
		Mode:    played.Recording.Mode,
		Score:   played.Recording.Score,
		Harmony: harmony,
		Saved:   req.Save,
	})
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.client.Recording(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.client.Runs(r.Context(), qusic.RunsRequest{})
	if err != nil {
		s.respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}
