package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// UserServiceInterface manages learner accounts.
type UserServiceInterface interface {
	CreateUser(ctx context.Context, username string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, userID int) (*models.User, error)
}

// UserService implements UserServiceInterface against PostgreSQL.
type UserService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewUserService creates a new user service instance
func NewUserService(db *sql.DB, logger *observability.Logger) *UserService {
	return &UserService{db: db, logger: logger}
}

// CreateUser registers a new learner, failing on duplicate usernames.
func (s *UserService) CreateUser(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user",
		attribute.String("user.username", username),
	)
	defer observability.FinishSpan(span, &err)

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "username is required")
	}
	if !contextutils.IsValidUsername(username) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "username must be 1-64 printable characters without spaces")
	}

	var user models.User
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username) VALUES ($1)
		RETURNING id, username, created_at`, username,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, contextutils.WrapError(contextutils.ErrRecordExists, "username already exists")
		}
		return nil, contextutils.WrapError(err, "failed to create user")
	}

	s.logger.Info(ctx, "User created", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
	})

	return &user, nil
}

// GetUserByUsername looks a learner up by name.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	_, span := observability.TraceUserFunction(ctx, "get_user_by_username",
		attribute.String("user.username", username),
	)
	defer observability.FinishSpan(span, &err)

	var user models.User
	err = s.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE username = $1`, username,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.ErrRecordNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user")
	}
	return &user, nil
}

// GetUserByID looks a learner up by id.
func (s *UserService) GetUserByID(ctx context.Context, userID int) (result0 *models.User, err error) {
	_, span := observability.TraceUserFunction(ctx, "get_user_by_id",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var user models.User
	err = s.db.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, userID,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.ErrRecordNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user")
	}
	return &user, nil
}
