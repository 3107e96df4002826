package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Clark-Hu/yamdb/internal/domain"
	"github.com/Clark-Hu/yamdb/internal/pgtest"
)

type testEnv struct {
	ctx        context.Context
	db         *pgtest.DB
	repository *Repository
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	db := pgtest.Start(t, "yamdb_repository_test")
	return &testEnv{
		ctx:        context.Background(),
		db:         db,
		repository: NewWithPool(db.Pool),
	}
}

func mustCreateUser(t testing.TB, env *testEnv, username string, role domain.Role) domain.User {
	t.Helper()
	user, err := env.repository.Users.Create(env.ctx, UserCreateParams{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return user
}

func mustCreateTitle(t testing.TB, env *testEnv, name string) domain.Title {
	t.Helper()
	title, err := env.repository.Titles.Create(env.ctx, TitleCreateParams{Name: name, Year: 1999})
	if err != nil {
		t.Fatalf("create title %q: %v", name, err)
	}
	return title
}

func TestTitlesRepository_CreateGetList(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.repository.Categories.Create(env.ctx, "Films", "films"); err != nil {
		t.Fatalf("create category: %v", err)
	}
	for _, g := range []string{"drama", "comedy"} {
		if _, err := env.repository.Genres.Create(env.ctx, g, g); err != nil {
			t.Fatalf("create genre %s: %v", g, err)
		}
	}

	category := "films"
	desc := "a film"
	matrix, err := env.repository.Titles.Create(env.ctx, TitleCreateParams{
		Name:         "The Matrix",
		Year:         1999,
		Description:  &desc,
		CategorySlug: &category,
		GenreSlugs:   []string{"drama", "comedy", "drama"},
	})
	if err != nil {
		t.Fatalf("create title: %v", err)
	}
	if matrix.Category == nil || matrix.Category.Slug != "films" {
		t.Fatalf("category = %+v, want films", matrix.Category)
	}
	if len(matrix.Genres) != 2 {
		t.Fatalf("genres = %+v, want 2 distinct", matrix.Genres)
	}
	if matrix.Rating != nil {
		t.Fatalf("rating = %v, want nil for a title without reviews", *matrix.Rating)
	}

	mustCreateTitle(t, env, "Heat")

	drama := "drama"
	res, err := env.repository.Titles.List(env.ctx, TitleListFilters{GenreSlug: &drama})
	if err != nil {
		t.Fatalf("list by genre: %v", err)
	}
	if res.Total != 1 || len(res.Items) != 1 || res.Items[0].ID != matrix.ID {
		t.Fatalf("list by genre = %+v", res)
	}

	name := "HEA"
	res, err = env.repository.Titles.List(env.ctx, TitleListFilters{Name: &name})
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if res.Total != 1 || res.Items[0].Name != "Heat" {
		t.Fatalf("list by name = %+v", res)
	}

	year := 1999
	res, err = env.repository.Titles.List(env.ctx, TitleListFilters{Year: &year, Page: Page{Limit: 1}})
	if err != nil {
		t.Fatalf("list by year: %v", err)
	}
	if res.Total != 2 || len(res.Items) != 1 {
		t.Fatalf("paged list = total %d items %d, want 2/1", res.Total, len(res.Items))
	}

	if _, err := env.repository.Titles.Get(env.ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get unknown = %v, want ErrNotFound", err)
	}
}

func TestTitlesRepository_UnknownReferences(t *testing.T) {
	env := newTestEnv(t)

	missing := "missing"
	_, err := env.repository.Titles.Create(env.ctx, TitleCreateParams{Name: "X", Year: 2000, CategorySlug: &missing})
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("unknown category err = %v", err)
	}

	title := mustCreateTitle(t, env, "Y")
	genres := []string{"nope"}
	_, err = env.repository.Titles.Update(env.ctx, title.ID, TitleUpdateParams{GenreSlugs: &genres})
	if !errors.Is(err, ErrUnknownReference) {
		t.Fatalf("unknown genre err = %v", err)
	}
}

func TestTitlesRepository_UpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.repository.Categories.Create(env.ctx, "Books", "books"); err != nil {
		t.Fatalf("create category: %v", err)
	}
	title := mustCreateTitle(t, env, "Draft")

	name := "Final"
	books := "books"
	updated, err := env.repository.Titles.Update(env.ctx, title.ID, TitleUpdateParams{Name: &name, CategorySlug: &books})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Final" || updated.Category == nil || updated.Category.Slug != "books" {
		t.Fatalf("updated = %+v", updated)
	}

	none := ""
	updated, err = env.repository.Titles.Update(env.ctx, title.ID, TitleUpdateParams{CategorySlug: &none})
	if err != nil {
		t.Fatalf("clear category: %v", err)
	}
	if updated.Category != nil {
		t.Fatalf("category = %+v, want nil", updated.Category)
	}

	if err := env.repository.Titles.Delete(env.ctx, title.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.repository.Titles.Delete(env.ctx, title.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestCatalogRepository_SlugConflictAndSearch(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.repository.Genres.Create(env.ctx, "Rock", "rock"); err != nil {
		t.Fatalf("create genre: %v", err)
	}
	_, err := env.repository.Genres.Create(env.ctx, "Rock again", "rock")
	if !errors.Is(err, ErrConflict) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate slug err = %v, want ErrConflict", err)
	}

	if _, err := env.repository.Genres.Create(env.ctx, "Jazz", "jazz"); err != nil {
		t.Fatalf("create genre: %v", err)
	}
	res, err := env.repository.Genres.List(env.ctx, "ja", Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if res.Total != 1 || res.Items[0].Slug != "jazz" {
		t.Fatalf("search = %+v", res)
	}

	if err := env.repository.Genres.DeleteBySlug(env.ctx, "rock"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.repository.Genres.GetBySlug(env.ctx, "rock"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted = %v", err)
	}
}

func TestReviewsRepository_Constraints(t *testing.T) {
	env := newTestEnv(t)

	author := mustCreateUser(t, env, "alice", domain.RoleUser)
	title := mustCreateTitle(t, env, "Constrained")

	review, err := env.repository.Reviews.Create(env.ctx, ReviewCreateParams{
		TitleID: title.ID, AuthorID: author.ID, Text: "good", Score: 8,
	})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	if review.Author != "alice" || review.Score != 8 {
		t.Fatalf("review = %+v", review)
	}

	_, err = env.repository.Reviews.Create(env.ctx, ReviewCreateParams{
		TitleID: title.ID, AuthorID: author.ID, Text: "again", Score: 5,
	})
	if !errors.Is(err, domain.ErrDuplicateReview) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateReview", err)
	}

	bad := 11
	_, err = env.repository.Reviews.Update(env.ctx, review.ID, ReviewUpdateParams{Score: &bad})
	if !errors.Is(err, domain.ErrScoreRange) {
		t.Fatalf("score check err = %v, want ErrScoreRange", err)
	}

	exists, err := env.repository.Reviews.ExistsByAuthor(env.ctx, title.ID, author.ID)
	if err != nil || !exists {
		t.Fatalf("ExistsByAuthor = %v, %v", exists, err)
	}

	other := mustCreateTitle(t, env, "Other")
	if _, err := env.repository.Reviews.Get(env.ctx, other.ID, review.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("review under wrong title = %v, want ErrNotFound", err)
	}

	titleID, err := env.repository.Reviews.Delete(env.ctx, review.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if titleID != title.ID {
		t.Fatalf("deleted review title = %d, want %d", titleID, title.ID)
	}
	if _, err := env.repository.Reviews.Delete(env.ctx, review.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete = %v, want ErrNotFound", err)
	}
}

func TestRatingsRepository_ScoresAndUpsert(t *testing.T) {
	env := newTestEnv(t)

	title := mustCreateTitle(t, env, "Rated")
	if _, err := env.repository.Ratings.Get(env.ctx, title.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rating before first write = %v, want ErrNotFound", err)
	}

	for i, score := range []int{3, 4} {
		user := mustCreateUser(t, env, fmt.Sprintf("rater%d", i), domain.RoleUser)
		if _, err := env.repository.Reviews.Create(env.ctx, ReviewCreateParams{
			TitleID: title.ID, AuthorID: user.ID, Text: "t", Score: score,
		}); err != nil {
			t.Fatalf("create review: %v", err)
		}
	}

	scores, err := env.repository.Ratings.ScoresByTitle(env.ctx, title.ID)
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("scores = %v, want 2 entries", scores)
	}

	value := 4
	if err := env.repository.Ratings.UpsertRating(env.ctx, title.ID, &value); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := env.repository.Ratings.UpsertRating(env.ctx, title.ID, nil); err != nil {
		t.Fatalf("upsert null: %v", err)
	}
	rating, err := env.repository.Ratings.Get(env.ctx, title.ID)
	if err != nil {
		t.Fatalf("get rating: %v", err)
	}
	if rating.Value != nil {
		t.Fatalf("rating = %v, want nil", *rating.Value)
	}
}

func TestCommentsRepository_CascadeWithReview(t *testing.T) {
	env := newTestEnv(t)

	author := mustCreateUser(t, env, "bob", domain.RoleUser)
	title := mustCreateTitle(t, env, "Commented")
	review, err := env.repository.Reviews.Create(env.ctx, ReviewCreateParams{
		TitleID: title.ID, AuthorID: author.ID, Text: "r", Score: 6,
	})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}

	comment, err := env.repository.Comments.Create(env.ctx, review.ID, author.ID, "first")
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	edited, err := env.repository.Comments.UpdateText(env.ctx, comment.ID, "edited")
	if err != nil || edited.Text != "edited" {
		t.Fatalf("update comment = %+v, %v", edited, err)
	}

	if _, err := env.repository.Reviews.Delete(env.ctx, review.ID); err != nil {
		t.Fatalf("delete review: %v", err)
	}
	if _, err := env.repository.Comments.Get(env.ctx, review.ID, comment.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("comment after review delete = %v, want ErrNotFound", err)
	}
}

func TestUsersRepository_UniqueAndReserved(t *testing.T) {
	env := newTestEnv(t)

	mustCreateUser(t, env, "carol", domain.RoleUser)
	_, err := env.repository.Users.Create(env.ctx, UserCreateParams{Username: "carol", Email: "other@example.com"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username = %v, want ErrConflict", err)
	}
	_, err = env.repository.Users.Create(env.ctx, UserCreateParams{Username: "ME", Email: "me@example.com"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("reserved username = %v, want ErrValidation", err)
	}

	role := domain.RoleModerator
	bio := "hi"
	user, err := env.repository.Users.GetByUsername(env.ctx, "carol")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	updated, err := env.repository.Users.Update(env.ctx, user.ID, UserUpdateParams{Role: &role, Bio: &bio})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Role != domain.RoleModerator || updated.Bio != "hi" || updated.Email != "carol@example.com" {
		t.Fatalf("updated = %+v", updated)
	}

	list, err := env.repository.Users.List(env.ctx, "CAROL", Page{})
	if err != nil || list.Total != 1 {
		t.Fatalf("exact search = %+v, %v", list, err)
	}
	list, err = env.repository.Users.List(env.ctx, "car", Page{})
	if err != nil || list.Total != 0 {
		t.Fatalf("prefix search = %+v, %v; want no match", list, err)
	}
	list, err = env.repository.Users.List(env.ctx, "", Page{})
	if err != nil || list.Total != 1 {
		t.Fatalf("unfiltered = %+v, %v", list, err)
	}
}

func TestNameSearchTreatsWildcardsLiterally(t *testing.T) {
	env := newTestEnv(t)
	mustCreateTitle(t, env, "100% Wolf")
	mustCreateTitle(t, env, "Snake_Eyes")
	mustCreateTitle(t, env, "Heat")

	cases := []struct {
		search string
		want   int64
	}{
		{"%", 1},
		{"_", 1},
		{"0% w", 1},
		{"e_e", 1},
		{"\\", 0},
		{"a", 2},
	}
	for _, c := range cases {
		name := c.search
		res, err := env.repository.Titles.List(env.ctx, TitleListFilters{Name: &name})
		if err != nil {
			t.Fatalf("list %q: %v", c.search, err)
		}
		if res.Total != c.want {
			t.Fatalf("name %q matched %d titles, want %d", c.search, res.Total, c.want)
		}
	}

	if _, err := env.repository.Genres.Create(env.ctx, "Sci_Fi", "sci-fi"); err != nil {
		t.Fatalf("create genre: %v", err)
	}
	if _, err := env.repository.Genres.Create(env.ctx, "Scifi", "scifi"); err != nil {
		t.Fatalf("create genre: %v", err)
	}
	res, err := env.repository.Genres.List(env.ctx, "i_f", Page{})
	if err != nil {
		t.Fatalf("list genres: %v", err)
	}
	if res.Total != 1 || res.Items[0].Slug != "sci-fi" {
		t.Fatalf("genre search = %+v", res)
	}
}

func TestTitleIDsByAuthor(t *testing.T) {
	env := newTestEnv(t)
	alice := mustCreateUser(t, env, "alice", domain.RoleUser)
	bob := mustCreateUser(t, env, "bob", domain.RoleUser)
	second := mustCreateTitle(t, env, "Second")
	first := mustCreateTitle(t, env, "First")
	mustCreateTitle(t, env, "Unreviewed")

	for _, p := range []ReviewCreateParams{
		{TitleID: first.ID, AuthorID: alice.ID, Text: "a", Score: 5},
		{TitleID: second.ID, AuthorID: alice.ID, Text: "b", Score: 6},
		{TitleID: first.ID, AuthorID: bob.ID, Text: "c", Score: 7},
	} {
		if _, err := env.repository.Reviews.Create(env.ctx, p); err != nil {
			t.Fatalf("create review: %v", err)
		}
	}

	ids, err := env.repository.Reviews.TitleIDsByAuthor(env.ctx, alice.ID)
	if err != nil {
		t.Fatalf("TitleIDsByAuthor: %v", err)
	}
	want := []int64{second.ID, first.ID}
	if first.ID < second.ID {
		want = []int64{first.ID, second.ID}
	}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	if err := env.repository.Users.LockForDelete(env.ctx, 999999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LockForDelete unknown = %v, want ErrNotFound", err)
	}
}
