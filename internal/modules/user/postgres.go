package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/georgemunganga/sso-users/internal/common"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

var userColumns = []string{"id", "name", "email", "password_hash", "company", "roles", "created_at", "updated_at"}

type postgresRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func scanUser(scan func(...interface{}) error) (*User, error) {
	u := &User{}
	var roles pq.StringArray
	err := scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Company, &roles, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Roles = []string(roles)
	return u, nil
}

func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", pqErr.Constraint, common.ErrConflict)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *postgresRepository) CreateUser(ctx context.Context, user *User) error {
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	id := uuid.New()

	query, args, err := r.sb.Insert("users").
		Columns("id", "name", "email", "password_hash", "company", "roles").
		Values(id, user.Name, user.Email, user.PasswordHash, user.Company, pq.Array(roles)).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		return classify(err)
	}
	user.ID = id.String()
	user.Roles = roles
	return nil
}

func (r *postgresRepository) getOne(ctx context.Context, where sq.Eq) (*User, error) {
	query, args, err := r.sb.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

func (r *postgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, sq.Eq{"email": email})
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, common.ErrNotFound
	}
	return r.getOne(ctx, sq.Eq{"id": parsedID})
}

func (r *postgresRepository) ListUsers(ctx context.Context, offset, limit int) ([]*User, error) {
	query, args, err := r.sb.Select(userColumns...).
		From("users").
		OrderBy("created_at", "id").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, classify(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

func (r *postgresRepository) CountUsers(ctx context.Context) (int64, error) {
	query, args, err := r.sb.Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

func (r *postgresRepository) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, common.ErrNotFound
	}
	if update.IsEmpty() {
		return r.GetUserByID(ctx, id)
	}

	b := r.sb.Update("users")
	if update.Name != nil {
		b = b.Set("name", *update.Name)
	}
	if update.Email != nil {
		b = b.Set("email", *update.Email)
	}
	if update.PasswordHash != nil {
		b = b.Set("password_hash", *update.PasswordHash)
	}
	if update.Company != nil {
		b = b.Set("company", *update.Company)
	}
	if update.Roles != nil {
		roles := *update.Roles
		if roles == nil {
			roles = []string{}
		}
		b = b.Set("roles", pq.Array(roles))
	}
	query, args, err := b.Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": parsedID}).
		Suffix("RETURNING id, name, email, password_hash, company, roles, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update query: %w", err)
	}

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...).Scan)
	if err != nil {
		return nil, classify(err)
	}
	return u, nil
}

func (r *postgresRepository) DeleteUser(ctx context.Context, id string) error {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return common.ErrNotFound
	}
	query, args, err := r.sb.Delete("users").Where(sq.Eq{"id": parsedID}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
