package services

import (
	"context"
	"database/sql"
	"errors"

	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"

	"github.com/lib/pq"
)

// WordServiceInterface selects and manages vocabulary words.
//
// The selection methods report exhaustion as (nil, nil): no word being
// available is a normal terminal condition, not a store failure.
type WordServiceInterface interface {
	GetNextWord(ctx context.Context, userID int, excludedIDs []int) (*models.Word, error)
	GetDueReviewWord(ctx context.Context, userID int, excludedIDs []int) (*models.Word, error)
	GetUnseenWord(ctx context.Context, userID int, excludedIDs []int) (*models.Word, error)
	GetWord(ctx context.Context, wordID int) (*models.Word, error)
	FindOrCreateWord(ctx context.Context, word string) (*models.Word, error)
	CountDueWords(ctx context.Context, userID int) (int, error)
	CountUnseenWords(ctx context.Context, userID int) (int, error)
	CountWords(ctx context.Context) (int, error)
}

// WordService implements WordServiceInterface against PostgreSQL.
type WordService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewWordService creates a new word service instance
func NewWordService(db *sql.DB, logger *observability.Logger) *WordService {
	return &WordService{db: db, logger: logger}
}

// GetNextWord picks the next word for a learner: due review words first,
// then a uniformly random unseen word.
func (s *WordService) GetNextWord(ctx context.Context, userID int, excludedIDs []int) (result0 *models.Word, err error) {
	ctx, span := observability.TraceWordFunction(ctx, "get_next_word",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	word, err := s.GetDueReviewWord(ctx, userID, excludedIDs)
	if err != nil {
		return nil, err
	}
	if word != nil {
		return word, nil
	}

	return s.GetUnseenWord(ctx, userID, excludedIDs)
}

// GetDueReviewWord returns the learner's most overdue wrongbook word,
// never-reviewed words first, then earliest due date, ties broken randomly.
func (s *WordService) GetDueReviewWord(ctx context.Context, userID int, excludedIDs []int) (result0 *models.Word, err error) {
	_, span := observability.TraceWordFunction(ctx, "get_due_review_word",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT w.id, w.word, w.definition, w.difficulty_level, w.category, w.created_at
		FROM words w
		JOIN user_words uw ON w.id = uw.word_id
		WHERE uw.user_id = $1
		  AND uw.in_wrongbook = TRUE
		  AND (uw.next_review IS NULL OR uw.next_review <= NOW())
		  AND TRIM(w.word) <> ''
		  AND NOT (w.id = ANY($2))
		ORDER BY
		  CASE WHEN uw.next_review IS NULL THEN 0 ELSE 1 END,
		  uw.next_review ASC,
		  RANDOM()
		LIMIT 1`

	return s.scanWordRow(s.db.QueryRowContext(ctx, query, userID, pq.Array(normalizeIDs(excludedIDs))))
}

// GetUnseenWord returns a uniformly random word the learner has never seen.
func (s *WordService) GetUnseenWord(ctx context.Context, userID int, excludedIDs []int) (result0 *models.Word, err error) {
	_, span := observability.TraceWordFunction(ctx, "get_unseen_word",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT w.id, w.word, w.definition, w.difficulty_level, w.category, w.created_at
		FROM words w
		WHERE TRIM(w.word) <> ''
		  AND w.id NOT IN (SELECT uw.word_id FROM user_words uw WHERE uw.user_id = $1)
		  AND NOT (w.id = ANY($2))
		ORDER BY RANDOM()
		LIMIT 1`

	return s.scanWordRow(s.db.QueryRowContext(ctx, query, userID, pq.Array(normalizeIDs(excludedIDs))))
}

// GetWord fetches a word by id
func (s *WordService) GetWord(ctx context.Context, wordID int) (result0 *models.Word, err error) {
	_, span := observability.TraceWordFunction(ctx, "get_word",
		observability.AttributeWordID(wordID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, word, definition, difficulty_level, category, created_at
		FROM words WHERE id = $1`

	word, err := s.scanWordRow(s.db.QueryRowContext(ctx, query, wordID))
	if err != nil {
		return nil, err
	}
	if word == nil {
		return nil, contextutils.ErrWordNotFound
	}
	return word, nil
}

// FindOrCreateWord looks a word up by text, inserting it with an empty
// definition when missing. Used by the wrongbook CSV import path.
func (s *WordService) FindOrCreateWord(ctx context.Context, word string) (result0 *models.Word, err error) {
	_, span := observability.TraceWordFunction(ctx, "find_or_create_word",
		observability.AttributeWord(word),
	)
	defer observability.FinishSpan(span, &err)

	existing, err := s.scanWordRow(s.db.QueryRowContext(ctx, `
		SELECT id, word, definition, difficulty_level, category, created_at
		FROM words WHERE word = $1`, word))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created, err := s.scanWordRow(s.db.QueryRowContext(ctx, `
		INSERT INTO words (word, definition)
		VALUES ($1, '')
		RETURNING id, word, definition, difficulty_level, category, created_at`, word))
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseQuery, "insert returned no row")
	}
	return created, nil
}

// CountDueWords counts the learner's wrongbook words currently due.
func (s *WordService) CountDueWords(ctx context.Context, userID int) (result0 int, err error) {
	_, span := observability.TraceWordFunction(ctx, "count_due_words",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_words uw
		JOIN words w ON w.id = uw.word_id
		WHERE uw.user_id = $1
		  AND uw.in_wrongbook = TRUE
		  AND (uw.next_review IS NULL OR uw.next_review <= NOW())
		  AND TRIM(w.word) <> ''`, userID).Scan(&count)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count due words")
	}
	return count, nil
}

// CountUnseenWords counts words the learner has never seen.
func (s *WordService) CountUnseenWords(ctx context.Context, userID int) (result0 int, err error) {
	_, span := observability.TraceWordFunction(ctx, "count_unseen_words",
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM words w
		WHERE TRIM(w.word) <> ''
		  AND w.id NOT IN (SELECT uw.word_id FROM user_words uw WHERE uw.user_id = $1)`, userID).Scan(&count)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count unseen words")
	}
	return count, nil
}

// CountWords counts every usable word in the vocabulary table.
func (s *WordService) CountWords(ctx context.Context) (result0 int, err error) {
	_, span := observability.TraceWordFunction(ctx, "count_words")
	defer observability.FinishSpan(span, &err)

	var count int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM words w
		WHERE TRIM(w.word) <> ''`).Scan(&count)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to count words")
	}
	return count, nil
}

// scanWordRow maps a single-word row, translating no-rows into (nil, nil).
func (s *WordService) scanWordRow(row *sql.Row) (*models.Word, error) {
	var word models.Word
	err := row.Scan(&word.ID, &word.Word, &word.Definition, &word.DifficultyLevel, &word.Category, &word.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to scan word row")
	}
	return &word, nil
}

// normalizeIDs keeps ANY($1) well-formed when the exclusion list is empty.
func normalizeIDs(ids []int) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}
