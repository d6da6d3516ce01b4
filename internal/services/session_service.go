package services

import (
	"context"
	"database/sql"
	"errors"

	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"
)

// SessionServiceInterface manages quiz sessions and their question attempts.
type SessionServiceInterface interface {
	CreateSession(ctx context.Context, userID int) (*models.Session, error)
	GetSession(ctx context.Context, sessionID int) (*models.Session, error)
	CountAttempts(ctx context.Context, sessionID int) (int, error)
	GetAskedWordIDs(ctx context.Context, sessionID int) ([]int, error)
	RecordAttempt(ctx context.Context, attempt *models.QuestionAttempt) error
	ApplyAnswer(ctx context.Context, sessionID int, isCorrect bool) error
}

// SessionService implements SessionServiceInterface against PostgreSQL.
type SessionService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSessionService creates a new session service instance
func NewSessionService(db *sql.DB, logger *observability.Logger) *SessionService {
	return &SessionService{db: db, logger: logger}
}

// CreateSession opens a new quiz sitting for the learner.
func (s *SessionService) CreateSession(ctx context.Context, userID int) (result0 *models.Session, err error) {
	ctx, span := observability.TraceSessionFunction(ctx, "create_session",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var session models.Session
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, session_date)
		VALUES ($1, CURRENT_DATE)
		RETURNING id, user_id, session_date, total_questions, correct_answers, score, completed, created_at`,
		userID,
	).Scan(&session.ID, &session.UserID, &session.SessionDate, &session.TotalQuestions,
		&session.CorrectAnswers, &session.Score, &session.Completed, &session.CreatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create session")
	}

	s.logger.Info(ctx, "Session created", map[string]interface{}{
		"session_id": session.ID,
		"user_id":    userID,
	})

	return &session, nil
}

// GetSession fetches a session by id, returning ErrSessionNotFound when missing.
func (s *SessionService) GetSession(ctx context.Context, sessionID int) (result0 *models.Session, err error) {
	_, span := observability.TraceSessionFunction(ctx, "get_session",
		observability.AttributeSessionID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	var session models.Session
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, session_date, total_questions, correct_answers, score, completed, created_at
		FROM sessions WHERE id = $1`, sessionID,
	).Scan(&session.ID, &session.UserID, &session.SessionDate, &session.TotalQuestions,
		&session.CorrectAnswers, &session.Score, &session.Completed, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.ErrSessionNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get session")
	}

	return &session, nil
}

// CountAttempts counts the questions already asked in a session.
func (s *SessionService) CountAttempts(ctx context.Context, sessionID int) (result0 int, err error) {
	_, span := observability.TraceSessionFunction(ctx, "count_attempts",
		observability.AttributeSessionID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM question_attempts WHERE session_id = $1`, sessionID).Scan(&count)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count attempts")
	}
	return count, nil
}

// GetAskedWordIDs returns the distinct word ids already asked in a session.
func (s *SessionService) GetAskedWordIDs(ctx context.Context, sessionID int) (result0 []int, err error) {
	_, span := observability.TraceSessionFunction(ctx, "get_asked_word_ids",
		observability.AttributeSessionID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT word_id FROM question_attempts WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query asked words")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan asked word id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate asked words")
	}

	return ids, nil
}

// RecordAttempt stores one asked question with the learner's answer.
func (s *SessionService) RecordAttempt(ctx context.Context, attempt *models.QuestionAttempt) (err error) {
	_, span := observability.TraceSessionFunction(ctx, "record_attempt",
		observability.AttributeSessionID(attempt.SessionID),
		observability.AttributeWordID(attempt.WordID),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO question_attempts
		(session_id, word_id, question_text, correct_answer, user_answer, is_correct, explanation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		attempt.SessionID, attempt.WordID, attempt.QuestionText, attempt.CorrectAnswer,
		attempt.UserAnswer, attempt.IsCorrect, attempt.Explanation)
	if err != nil {
		return contextutils.WrapError(err, "failed to record attempt")
	}
	return nil
}

// ApplyAnswer bumps the session counters for one graded answer.
func (s *SessionService) ApplyAnswer(ctx context.Context, sessionID int, isCorrect bool) (err error) {
	_, span := observability.TraceSessionFunction(ctx, "apply_answer",
		observability.AttributeSessionID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	if isCorrect {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sessions
			SET total_questions = total_questions + 1,
			    correct_answers = correct_answers + 1,
			    score = score + 1
			WHERE id = $1`, sessionID)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sessions SET total_questions = total_questions + 1 WHERE id = $1`, sessionID)
	}
	if err != nil {
		return contextutils.WrapError(err, "failed to update session counters")
	}
	return nil
}
