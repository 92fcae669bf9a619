package web

import (
	"net/http"
	"slices"

	"gamecal/internal/model"
	"gamecal/internal/source"
)

type categoryDTO struct {
	model.Category
	Selected bool `json:"selected"`
}

type selectionResponse struct {
	Selected   []string `json:"selected"`
	Generation uint64   `json:"generation"`
}

type recordsResponse struct {
	Records []model.Record `json:"records"`
	Loading bool           `json:"loading"`
	Status  source.Status  `json:"status"`
}

type refreshResponse struct {
	Count  int           `json:"count"`
	Status source.Status `json:"status"`
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	universe := s.engine.Classifier().Universe()
	out := make([]categoryDTO, 0, len(universe))
	for _, cat := range universe {
		out = append(out, categoryDTO{Category: cat, Selected: s.selection.Has(cat.ID)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLegend(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Classifier().Legend())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	if !slices.Contains(s.selection.Universe(), tag) {
		writeError(w, http.StatusNotFound, "unknown category")
		return
	}
	s.selection.Toggle(tag)
	s.writeSelection(w)
}

func (s *Server) handleSelectAll(w http.ResponseWriter, _ *http.Request) {
	s.selection.SelectAll()
	s.writeSelection(w)
}

func (s *Server) handleDeselectAll(w http.ResponseWriter, _ *http.Request) {
	s.selection.DeselectAll()
	s.writeSelection(w)
}

func (s *Server) writeSelection(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, selectionResponse{
		Selected:   s.selection.Selected(),
		Generation: s.hub.Generation(),
	})
}

func (s *Server) handleRecords(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, recordsResponse{
		Records: s.records.Records(),
		Loading: s.records.Loading(),
		Status:  s.records.Status(),
	})
}

// handleRefresh drops the cache and fetches the record list again.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	recs := s.records.Get(r.Context(), true)
	writeJSON(w, http.StatusOK, refreshResponse{
		Count:  len(recs),
		Status: s.records.Status(),
	})
}
