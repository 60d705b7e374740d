package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"botiquin/internal/core/apperror"
	"botiquin/internal/core/id"
	"botiquin/internal/domain/auth"
)

// UserRepo is the PostgreSQL staff account repository.
type UserRepo struct {
	txManager  *TxManager
	selectCols []string
}

var _ auth.UserRepository = (*UserRepo)(nil)

// NewUserRepo creates a new user repository.
func NewUserRepo(txManager *TxManager) *UserRepo {
	return &UserRepo{
		txManager:  txManager,
		selectCols: ExtractDBColumns[auth.User](),
	}
}

func (r *UserRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a user.
func (r *UserRepo) Create(ctx context.Context, u *auth.User) error {
	sql, args, err := r.builder().Insert("users").SetMap(StructToMap(u)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("user", "username", u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	q := r.builder().
		Select(r.selectCols...).
		From("users").
		Where(squirrel.Eq{"id": userID})
	return r.getOne(ctx, q, userID.String())
}

// GetByUsername retrieves a non-deleted user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	q := r.builder().
		Select(r.selectCols...).
		From("users").
		Where(squirrel.Eq{"username": strings.ToLower(strings.TrimSpace(username))}).
		Where(squirrel.Eq{"deletion_mark": false})
	return r.getOne(ctx, q, username)
}

func (r *UserRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*auth.User, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	u := &auth.User{}
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), u, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("user", key)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update modifies a user with optimistic locking.
func (r *UserRepo) Update(ctx context.Context, u *auth.User) error {
	data := StructToMap(u)
	delete(data, "id")
	delete(data, "version")

	sql, args, err := r.builder().
		Update("users").
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": u.ID}).
		Where(squirrel.Eq{"version": u.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("user", u.ID)
	}

	u.SetVersion(u.Version + 1)
	return nil
}

// SetDeletionMark toggles the soft-delete mark.
func (r *UserRepo) SetDeletionMark(ctx context.Context, userID id.ID, deleted bool) error {
	sql, args, err := r.builder().
		Update("users").
		Set("deletion_mark", deleted).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("mark user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("user", userID.String())
	}
	return nil
}

// List retrieves all non-deleted users ordered by username.
func (r *UserRepo) List(ctx context.Context) ([]*auth.User, error) {
	sql, args, err := r.builder().
		Select(r.selectCols...).
		From("users").
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("username ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var users []*auth.User
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &users, sql, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
