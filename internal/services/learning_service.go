package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"lexiboost/internal/config"
	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// LearningServiceInterface tracks spaced-repetition progress per learner.
type LearningServiceInterface interface {
	RecordAnswer(ctx context.Context, userID, wordID int, isCorrect bool) error
	AddToWrongbook(ctx context.Context, userID, wordID int) (bool, error)
	GetUserWord(ctx context.Context, userID, wordID int) (*models.UserWord, error)
	GetUserStats(ctx context.Context, userID int) (*models.UserStats, error)
}

// LearningService implements LearningServiceInterface against PostgreSQL.
type LearningService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewLearningService creates a new learning service instance
func NewLearningService(db *sql.DB, logger *observability.Logger) *LearningService {
	return &LearningService{db: db, logger: logger}
}

// CalculateNextReview advances the SRS ladder. A correct answer moves one
// step up (capped at the last rung), a wrong answer resets to the start.
func CalculateNextReview(currentIntervalIndex int, isCorrect bool) (time.Time, int) {
	intervals := config.SRSIntervalsDays

	var nextIndex int
	if isCorrect {
		nextIndex = currentIntervalIndex + 1
		if nextIndex > len(intervals)-1 {
			nextIndex = len(intervals) - 1
		}
	} else {
		nextIndex = 0
	}
	if nextIndex < 0 {
		nextIndex = 0
	}

	nextReview := time.Now().AddDate(0, 0, intervals[nextIndex])
	return nextReview, nextIndex
}

// RecordAnswer applies one graded answer to the learner's progress row.
//
// A word leaves the wrongbook after enough correct answers; any wrong
// answer resets the counter and pulls it back in. A correct answer for a
// word with no progress row records nothing, matching the serving logic
// that only unseen or wrongbook words are ever asked.
func (s *LearningService) RecordAnswer(ctx context.Context, userID, wordID int, isCorrect bool) (err error) {
	ctx, span := observability.TraceLearningFunction(ctx, "record_answer",
		observability.AttributeUserID(userID),
		observability.AttributeWordID(wordID),
		attribute.Bool("answer.correct", isCorrect),
	)
	defer observability.FinishSpan(span, &err)

	userWord, err := s.GetUserWord(ctx, userID, wordID)
	if err != nil {
		return err
	}

	if userWord == nil {
		if isCorrect {
			return nil
		}
		nextReview, nextInterval := CalculateNextReview(0, false)
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO user_words
			(user_id, word_id, correct_count, last_reviewed, next_review, srs_interval, in_wrongbook)
			VALUES ($1, $2, 0, NOW(), $3, $4, TRUE)`,
			userID, wordID, nextReview, nextInterval)
		if err != nil {
			return contextutils.WrapError(err, "failed to insert user word")
		}
		return nil
	}

	if isCorrect {
		newCorrectCount := userWord.CorrectCount + 1
		nextReview, nextInterval := CalculateNextReview(userWord.SRSInterval, true)
		inWrongbook := newCorrectCount < config.WrongbookExitThreshold

		_, err = s.db.ExecContext(ctx, `
			UPDATE user_words
			SET correct_count = $1, last_reviewed = NOW(),
			    next_review = $2, srs_interval = $3, in_wrongbook = $4
			WHERE id = $5`,
			newCorrectCount, nextReview, nextInterval, inWrongbook, userWord.ID)
		if err != nil {
			return contextutils.WrapError(err, "failed to update user word")
		}
		return nil
	}

	nextReview, nextInterval := CalculateNextReview(0, false)
	_, err = s.db.ExecContext(ctx, `
		UPDATE user_words
		SET correct_count = 0, last_reviewed = NOW(),
		    next_review = $1, srs_interval = $2, in_wrongbook = TRUE
		WHERE id = $3`,
		nextReview, nextInterval, userWord.ID)
	if err != nil {
		return contextutils.WrapError(err, "failed to reset user word")
	}
	return nil
}

// AddToWrongbook puts a word into the learner's wrongbook due immediately.
// Returns false when the learner already has a progress row for the word.
func (s *LearningService) AddToWrongbook(ctx context.Context, userID, wordID int) (result0 bool, err error) {
	ctx, span := observability.TraceLearningFunction(ctx, "add_to_wrongbook",
		observability.AttributeUserID(userID),
		observability.AttributeWordID(wordID),
	)
	defer observability.FinishSpan(span, &err)

	existing, err := s.GetUserWord(ctx, userID, wordID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_words
		(user_id, word_id, correct_count, last_reviewed, next_review, srs_interval, in_wrongbook)
		VALUES ($1, $2, 0, NOW(), NOW(), 0, TRUE)`,
		userID, wordID)
	if err != nil {
		return false, contextutils.WrapError(err, "failed to add word to wrongbook")
	}
	return true, nil
}

// GetUserWord fetches the learner's progress row for a word, or nil.
func (s *LearningService) GetUserWord(ctx context.Context, userID, wordID int) (result0 *models.UserWord, err error) {
	_, span := observability.TraceLearningFunction(ctx, "get_user_word",
		observability.AttributeUserID(userID),
		observability.AttributeWordID(wordID),
	)
	defer observability.FinishSpan(span, &err)

	var uw models.UserWord
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, word_id, correct_count, last_reviewed, next_review, srs_interval, in_wrongbook
		FROM user_words WHERE user_id = $1 AND word_id = $2`,
		userID, wordID,
	).Scan(&uw.ID, &uw.UserID, &uw.WordID, &uw.CorrectCount, &uw.LastReviewed,
		&uw.NextReview, &uw.SRSInterval, &uw.InWrongbook)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user word")
	}
	return &uw, nil
}

// GetUserStats aggregates daily and total progress for the stats endpoint.
func (s *LearningService) GetUserStats(ctx context.Context, userID int) (result0 *models.UserStats, err error) {
	_, span := observability.TraceLearningFunction(ctx, "get_user_stats",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	stats := &models.UserStats{}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(score), 0), COUNT(*)
		FROM sessions WHERE user_id = $1`, userID,
	).Scan(&stats.TotalScore, &stats.SessionsPlayed)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to aggregate total stats")
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(score), 0)
		FROM sessions WHERE user_id = $1 AND session_date = CURRENT_DATE`, userID,
	).Scan(&stats.DailyScore)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to aggregate daily stats")
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_words WHERE user_id = $1 AND in_wrongbook = TRUE`, userID,
	).Scan(&stats.WrongbookCount)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to count wrongbook")
	}

	return stats, nil
}
