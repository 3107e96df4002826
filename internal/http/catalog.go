package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/catalog"
	"github.com/Clark-Hu/yamdb/internal/domain"
)

type slugResponse struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type titleResponse struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Year        int            `json:"year"`
	Rating      *int           `json:"rating"`
	Description *string        `json:"description"`
	Genres      []slugResponse `json:"genre"`
	Category    *slugResponse  `json:"category"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toTitleResponse(t domain.Title) titleResponse {
	resp := titleResponse{
		ID:          t.ID,
		Name:        t.Name,
		Year:        t.Year,
		Rating:      t.Rating,
		Description: t.Description,
		Genres:      make([]slugResponse, 0, len(t.Genres)),
		CreatedAt:   t.CreatedAt,
	}
	for _, g := range t.Genres {
		resp.Genres = append(resp.Genres, slugResponse{Name: g.Name, Slug: g.Slug})
	}
	if t.Category != nil {
		resp.Category = &slugResponse{Name: t.Category.Name, Slug: t.Category.Slug}
	}
	return resp
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	page, err := buildPage(r.URL.Query(), s.cfg.PageLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	result, err := s.svc.Catalog.ListCategories(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")), page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := listResponse[slugResponse]{Count: result.Total, Results: make([]slugResponse, 0, len(result.Items))}
	for _, c := range result.Items {
		resp.Results = append(resp.Results, slugResponse{Name: c.Name, Slug: c.Slug})
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req catalog.SlugInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	c, err := s.svc.Catalog.CreateCategory(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, slugResponse{Name: c.Name, Slug: c.Slug})
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Catalog.DeleteCategory(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	page, err := buildPage(r.URL.Query(), s.cfg.PageLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	result, err := s.svc.Catalog.ListGenres(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")), page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := listResponse[slugResponse]{Count: result.Total, Results: make([]slugResponse, 0, len(result.Items))}
	for _, g := range result.Items {
		resp.Results = append(resp.Results, slugResponse{Name: g.Name, Slug: g.Slug})
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request) {
	var req catalog.SlugInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	g, err := s.svc.Catalog.CreateGenre(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, slugResponse{Name: g.Name, Slug: g.Slug})
}

func (s *Server) handleDeleteGenre(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Catalog.DeleteGenre(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "slug"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}

func (s *Server) handleListTitles(w http.ResponseWriter, r *http.Request) {
	filters, err := buildTitleFilters(r.URL.Query(), s.cfg.PageLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	result, err := s.svc.Catalog.ListTitles(r.Context(), filters)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := listResponse[titleResponse]{Count: result.Total, Results: make([]titleResponse, 0, len(result.Items))}
	for _, t := range result.Items {
		resp.Results = append(resp.Results, toTitleResponse(t))
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCreateTitle(w http.ResponseWriter, r *http.Request) {
	var req catalog.TitleInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	title, err := s.svc.Catalog.CreateTitle(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/titles/%d", title.ID))
	respondJSON(w, r, http.StatusCreated, toTitleResponse(title))
}

func (s *Server) handleGetTitle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "titleID")
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	title, err := s.svc.Catalog.GetTitle(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toTitleResponse(title))
}

func (s *Server) handleUpdateTitle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "titleID")
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	var req catalog.TitlePatch
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	title, err := s.svc.Catalog.UpdateTitle(r.Context(), auth.ActorFromContext(r.Context()), id, req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toTitleResponse(title))
}

func (s *Server) handleDeleteTitle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "titleID")
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	if err := s.svc.Catalog.DeleteTitle(r.Context(), auth.ActorFromContext(r.Context()), id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}
