package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/catalog"
	"github.com/Clark-Hu/yamdb/internal/config"
	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/pgtest"
	"github.com/Clark-Hu/yamdb/internal/rating"
	"github.com/Clark-Hu/yamdb/internal/repository"
	"github.com/Clark-Hu/yamdb/internal/reviews"
	"github.com/Clark-Hu/yamdb/internal/store"
	"github.com/Clark-Hu/yamdb/internal/users"
)

type testServer struct {
	srv    *Server
	repo   *repository.Repository
	tokens auth.Verifier
}

func buildTestServer(tb testing.TB) *testServer {
	tb.Helper()
	cfg := config.Config{
		Port:               "0",
		JWTSecret:          testSecret,
		ReadTimeoutSecs:    15,
		WriteTimeoutSecs:   15,
		IdleTimeoutSecs:    60,
		RequestTimeoutSecs: 10,
		CORSAllowedOrigins: []string{"*"},
		PageLimit:          20,
	}

	db := pgtest.Start(tb, "yamdb_http_test")
	st := store.NewFromPool(db.Pool, nil)
	repo := repository.NewWithPool(db.Pool)
	aggregator := rating.NewAggregator(nil)
	svc := Services{
		Catalog:  catalog.NewService(st, repo, nil),
		Reviews:  reviews.NewService(st, repo, aggregator, nil, nil),
		Comments: reviews.NewCommentService(repo, nil),
		Users:    users.NewService(st, repo, aggregator, users.Options{Tokens: auth.NewVerifier(testSecret)}),
	}
	return &testServer{
		srv:    New(cfg, st, repo.Users, svc, nil),
		repo:   repo,
		tokens: auth.NewVerifier(testSecret),
	}
}

func (ts *testServer) user(tb testing.TB, name string, role domain.Role) string {
	tb.Helper()
	u, err := ts.repo.Users.Create(context.Background(), repository.UserCreateParams{
		Username: name,
		Email:    name + "@example.com",
		Role:     role,
	})
	require.NoError(tb, err)
	token, err := ts.tokens.Sign(u.ID, time.Hour)
	require.NoError(tb, err)
	return token
}

func (ts *testServer) do(tb testing.TB, method, path, token string, body any) *httptest.ResponseRecorder {
	tb.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(tb, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](tb testing.TB, rec *httptest.ResponseRecorder) T {
	tb.Helper()
	var out T
	require.NoError(tb, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestReviewFlowOverHTTP(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.user(t, "root", domain.RoleAdmin)
	alice := ts.user(t, "alice", domain.RoleUser)
	bob := ts.user(t, "bob", domain.RoleUser)
	mod := ts.user(t, "mod", domain.RoleModerator)

	rec := ts.do(t, http.MethodPost, "/api/v1/categories", alice, map[string]string{"name": "Movie", "slug": "movie"})
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/categories", admin, map[string]string{"name": "Movie", "slug": "movie"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/api/v1/genres", admin, map[string]string{"name": "Drama", "slug": "drama"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/titles", admin, map[string]any{
		"name": "The Godfather", "year": 1972, "category": "movie", "genre": []string{"drama"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	title := decode[titleResponse](t, rec)
	assert.Nil(t, title.Rating)
	require.Len(t, title.Genres, 1)
	titlePath := fmt.Sprintf("/api/v1/titles/%d", title.ID)
	reviewsPath := titlePath + "/reviews"

	rec = ts.do(t, http.MethodPost, reviewsPath, "", map[string]any{"text": "great", "score": 9})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "anonymous review")

	rec = ts.do(t, http.MethodPost, reviewsPath, alice, map[string]any{"text": "great", "score": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "score out of range")

	rec = ts.do(t, http.MethodPost, reviewsPath, alice, map[string]any{"text": "great", "score": 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	aliceReview := decode[reviewResponse](t, rec)
	assert.Equal(t, "alice", aliceReview.Author)

	rec = ts.do(t, http.MethodPost, reviewsPath, alice, map[string]any{"text": "again", "score": 6})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate review")

	rec = ts.do(t, http.MethodPost, reviewsPath, bob, map[string]any{"text": "fine", "score": 9})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, titlePath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	title = decode[titleResponse](t, rec)
	require.NotNil(t, title.Rating)
	assert.Equal(t, 7, *title.Rating)

	alicePath := fmt.Sprintf("%s/%d", reviewsPath, aliceReview.ID)
	rec = ts.do(t, http.MethodPatch, alicePath, bob, map[string]any{"score": 1})
	assert.Equal(t, http.StatusForbidden, rec.Code, "non-owner edit")

	rec = ts.do(t, http.MethodPatch, alicePath, mod, map[string]any{"score": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, titlePath, "", nil)
	title = decode[titleResponse](t, rec)
	require.NotNil(t, title.Rating)
	assert.Equal(t, 10, *title.Rating, "mean of 10 and 9 rounds half up")

	rec = ts.do(t, http.MethodPost, alicePath+"/comments", bob, map[string]string{"text": "agreed"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodGet, alicePath+"/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	comments := decode[listResponse[commentResponse]](t, rec)
	assert.EqualValues(t, 1, comments.Count)

	rec = ts.do(t, http.MethodGet, reviewsPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[listResponse[reviewResponse]](t, rec)
	assert.EqualValues(t, 2, list.Count)

	rec = ts.do(t, http.MethodDelete, alicePath, alice, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodGet, alicePath+"/comments", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "comments go with their review")

	rec = ts.do(t, http.MethodGet, titlePath, "", nil)
	title = decode[titleResponse](t, rec)
	require.NotNil(t, title.Rating)
	assert.Equal(t, 9, *title.Rating)

	rec = ts.do(t, http.MethodGet, "/api/v1/titles?genre=drama&year=1972", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	titles := decode[listResponse[titleResponse]](t, rec)
	assert.EqualValues(t, 1, titles.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/titles/999999/reviews", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsersOverHTTP(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.user(t, "root", domain.RoleAdmin)
	alice := ts.user(t, "alice", domain.RoleUser)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/me", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[userResponse](t, rec).Username)

	rec = ts.do(t, http.MethodPatch, "/api/v1/users/me", alice, map[string]string{"bio": "film buff"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "film buff", decode[userResponse](t, rec).Bio)

	rec = ts.do(t, http.MethodPatch, "/api/v1/users/me", alice, map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code, "self promotion")

	rec = ts.do(t, http.MethodGet, "/api/v1/users", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "me", "email": "me@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reserved username")

	rec = ts.do(t, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "carol", "email": "carol@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "user", decode[userResponse](t, rec).Role)

	rec = ts.do(t, http.MethodPost, "/api/v1/users", admin, map[string]string{"username": "carol", "email": "other@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/users/carol", admin, map[string]string{"role": "moderator"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "moderator", decode[userResponse](t, rec).Role)

	rec = ts.do(t, http.MethodDelete, "/api/v1/users/carol", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/v1/users/carol", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	ts := buildTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[readyResponse](t, rec)
	assert.Equal(t, "ready", ready.Status)
	require.NotNil(t, ready.Pool)
	assert.Positive(t, ready.Pool.MaxConns)
	assert.Contains(t, rec.Body.String(), `"max_conns"`)
}

func TestSignupAndTokenOverHTTP(t *testing.T) {
	ts := buildTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"username": "erin", "email": "erin@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signed := decode[signupResponse](t, rec)
	assert.Equal(t, signupResponse{Username: "erin", Email: "erin@example.com"}, signed)
	assert.NotContains(t, rec.Body.String(), "confirmation_code")

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"username": "erin", "email": "other@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{"username": "me", "email": "me@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	erin, err := ts.repo.Users.GetByUsername(context.Background(), "erin")
	require.NoError(t, err)
	code := ts.tokens.ConfirmationCode(erin)

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"username": "erin", "confirmation_code": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"username": "ghost", "confirmation_code": code})
	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"username": "erin", "confirmation_code": code})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token := decode[tokenResponse](t, rec).Token
	require.NotEmpty(t, token)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "erin", decode[userResponse](t, rec).Username)
}

func TestAnonymousBlankReviewIsUnauthorized(t *testing.T) {
	ts := buildTestServer(t)
	admin := ts.user(t, "root", domain.RoleAdmin)
	rec := ts.do(t, http.MethodPost, "/api/v1/titles", admin, map[string]any{"name": "Heat", "year": 1995})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	title := decode[titleResponse](t, rec)

	path := fmt.Sprintf("/api/v1/titles/%d/reviews", title.ID)
	rec = ts.do(t, http.MethodPost, path, "", map[string]any{"text": "", "score": 5})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, path, admin, map[string]any{"text": "", "score": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func BenchmarkListTitles(b *testing.B) {
	ts := buildTestServer(b)
	admin := ts.user(b, "root", domain.RoleAdmin)
	for i := 0; i < 50; i++ {
		rec := ts.do(b, http.MethodPost, "/api/v1/titles", admin, map[string]any{"name": fmt.Sprintf("Title %d", i), "year": 2000})
		if rec.Code != http.StatusCreated {
			b.Fatalf("seed title: %d %s", rec.Code, rec.Body.String())
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := ts.do(b, http.MethodGet, "/api/v1/titles?limit=20", "", nil)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
