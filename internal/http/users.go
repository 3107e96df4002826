package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/users"
)

type userResponse struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Bio       string `json:"bio"`
	Role      string `json:"role"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Bio:       u.Bio,
		Role:      string(u.Role),
	}
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page, err := buildPage(r.URL.Query(), s.cfg.PageLimit)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	result, err := s.svc.Users.List(r.Context(), auth.ActorFromContext(r.Context()),
		strings.TrimSpace(r.URL.Query().Get("search")), page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := listResponse[userResponse]{Count: result.Total, Results: make([]userResponse, 0, len(result.Items))}
	for _, u := range result.Items {
		resp.Results = append(resp.Results, toUserResponse(u))
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req users.CreateInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Create(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toUserResponse(u))
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	if actor == nil {
		respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided")
		return
	}
	respondJSON(w, r, http.StatusOK, toUserResponse(*actor))
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req users.Patch
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	u, err := s.svc.Users.UpdateMe(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Get(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "username"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req users.Patch
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Update(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "username"), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toUserResponse(u))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Users.Delete(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "username")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondNoContent(w)
}

type signupResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// handleSignup registers an account, or resends the code for an existing one.
// The confirmation code is delivered out of band, never in the response.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req users.SignupInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Signup(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, signupResponse{Username: u.Username, Email: u.Email})
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req users.TokenInput
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	token, err := s.svc.Users.IssueToken(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, tokenResponse{Token: token})
}
