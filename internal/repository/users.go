package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

// UsersRepository persists user accounts.
type UsersRepository struct {
	db DBTX
}

const userColumns = `id, username, email, role, bio, first_name, last_name, created_at`

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Username  string
	Email     string
	Role      domain.Role
	Bio       string
	FirstName string
	LastName  string
}

// UserUpdateParams carries a partial update; nil fields are left unchanged.
type UserUpdateParams struct {
	Username  *string
	Email     *string
	Role      *domain.Role
	Bio       *string
	FirstName *string
	LastName  *string
}

// UserListResult returns the paginated payload.
type UserListResult struct {
	Items []domain.User
	Total int64
}

// Create inserts a user. Duplicate usernames or emails yield ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	role := params.Role
	if role == "" {
		role = domain.RoleUser
	}
	query := fmt.Sprintf(`
        INSERT INTO users (username, email, role, bio, first_name, last_name)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query,
		params.Username, params.Email, string(role), params.Bio, params.FirstName, params.LastName))
	if err != nil {
		return domain.User{}, translateError(err)
	}
	return user, nil
}

func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, translateError(err)
	}
	return user, nil
}

func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return domain.User{}, translateError(err)
	}
	return user, nil
}

// List returns all users ordered by username. A non-empty search narrows the
// result to the account whose username equals it, ignoring case.
func (r *UsersRepository) List(ctx context.Context, search string, page Page) (UserListResult, error) {
	page = page.normalize()
	search = strings.TrimSpace(search)

	const filter = `($1 = '' OR lower(username) = lower($1))`

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+filter, search).Scan(&total); err != nil {
		return UserListResult{}, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+`
        FROM users
        WHERE `+filter+`
        ORDER BY username
        LIMIT $2 OFFSET $3
    `, search, page.Limit, page.Offset)
	if err != nil {
		return UserListResult{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]domain.User, 0, page.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return UserListResult{}, err
		}
		items = append(items, user)
	}
	return UserListResult{Items: items, Total: total}, rows.Err()
}

// Update applies a partial update and returns the stored user.
func (r *UsersRepository) Update(ctx context.Context, id int64, params UserUpdateParams) (domain.User, error) {
	var role *string
	if params.Role != nil {
		v := string(*params.Role)
		role = &v
	}
	query := fmt.Sprintf(`
        UPDATE users
        SET username   = COALESCE($2, username),
            email      = COALESCE($3, email),
            role       = COALESCE($4, role),
            bio        = COALESCE($5, bio),
            first_name = COALESCE($6, first_name),
            last_name  = COALESCE($7, last_name)
        WHERE id = $1
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query,
		id, params.Username, params.Email, role, params.Bio, params.FirstName, params.LastName))
	if err != nil {
		return domain.User{}, translateError(err)
	}
	return user, nil
}

// LockForDelete takes an exclusive row lock on the user. Review inserts by
// this user wait on it through their foreign-key check.
func (r *UsersRepository) LockForDelete(ctx context.Context, id int64) error {
	var locked int64
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return translateError(err)
}

// Delete removes the user. Reviews and comments by the user cascade, so callers
// must recompute the ratings of the affected titles in the same transaction.
func (r *UsersRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &role, &u.Bio, &u.FirstName, &u.LastName, &u.CreatedAt)
	u.Role = domain.Role(role)
	return u, err
}
