package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/reviews"
)

type reviewCreateRequest struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

type reviewUpdateRequest struct {
	Text  *string `json:"text"`
	Score *int    `json:"score"`
}

type reviewResponse struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	Score   int       `json:"score"`
	PubDate time.Time `json:"pub_date"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type commentResponse struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	Author  string    `json:"author"`
	PubDate time.Time `json:"pub_date"`
}

func toReviewResponse(r domain.Review) reviewResponse {
	return reviewResponse{ID: r.ID, Text: r.Text, Author: r.Author, Score: r.Score, PubDate: r.PubDate}
}

func toCommentResponse(c domain.Comment) commentResponse {
	return commentResponse{ID: c.ID, Text: c.Text, Author: c.Author, PubDate: c.PubDate}
}

// reviewPath extracts the title and, when present in the route, the review id.
func reviewPath(r *http.Request, withReview bool) (titleID, reviewID int64, err error) {
	if titleID, err = idParam(r, "titleID"); err != nil {
		return 0, 0, err
	}
	if withReview {
		if reviewID, err = idParam(r, "reviewID"); err != nil {
			return 0, 0, err
		}
	}
	return titleID, reviewID, nil
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	titleID, _, err := reviewPath(r, false)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	page, err := buildPage(r.URL.Query(), s.cfg.PageLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	result, err := s.svc.Reviews.List(r.Context(), titleID, page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := listResponse[reviewResponse]{Count: result.Total, Results: make([]reviewResponse, 0, len(result.Items))}
	for _, rv := range result.Items {
		resp.Results = append(resp.Results, toReviewResponse(rv))
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	titleID, _, err := reviewPath(r, false)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	var req reviewCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	review, err := s.svc.Reviews.Create(r.Context(), auth.ActorFromContext(r.Context()), titleID, req.Text, req.Score)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/titles/%d/reviews/%d", titleID, review.ID))
	respondJSON(w, r, http.StatusCreated, toReviewResponse(review))
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	review, err := s.svc.Reviews.Get(r.Context(), titleID, reviewID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	var req reviewUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	review, err := s.svc.Reviews.Update(r.Context(), auth.ActorFromContext(r.Context()), titleID, reviewID,
		reviews.UpdateInput{Text: req.Text, Score: req.Score})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	if err := s.svc.Reviews.Delete(r.Context(), auth.ActorFromContext(r.Context()), titleID, reviewID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	page, err := buildPage(r.URL.Query(), s.cfg.PageLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	result, err := s.svc.Comments.List(r.Context(), titleID, reviewID, page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := listResponse[commentResponse]{Count: result.Total, Results: make([]commentResponse, 0, len(result.Items))}
	for _, c := range result.Items {
		resp.Results = append(resp.Results, toCommentResponse(c))
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	var req commentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	c, err := s.svc.Comments.Create(r.Context(), auth.ActorFromContext(r.Context()), titleID, reviewID, req.Text)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toCommentResponse(c))
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	commentID, err := idParam(r, "commentID")
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	c, err := s.svc.Comments.Get(r.Context(), titleID, reviewID, commentID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCommentResponse(c))
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	commentID, err := idParam(r, "commentID")
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	var req commentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	c, err := s.svc.Comments.Update(r.Context(), auth.ActorFromContext(r.Context()), titleID, reviewID, commentID, req.Text)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCommentResponse(c))
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	titleID, reviewID, err := reviewPath(r, true)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	commentID, err := idParam(r, "commentID")
	if err != nil {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
		return
	}
	if err := s.svc.Comments.Delete(r.Context(), auth.ActorFromContext(r.Context()), titleID, reviewID, commentID); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}
