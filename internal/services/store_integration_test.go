//go:build integration

package services

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexiboost/internal/config"
	"lexiboost/internal/database"
	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	contextutils "lexiboost/internal/utils"
)

// sharedTestDBSetup provides a clean database for each integration test.
func sharedTestDBSetup(t *testing.T) *sql.DB {
	t.Helper()

	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Fatal("TEST_DATABASE_URL environment variable must be set for integration tests")
	}

	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	dbManager := database.NewManager(logger)

	db, err := dbManager.InitDB(databaseURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, query := range []string{
		"TRUNCATE TABLE question_attempts CASCADE",
		"TRUNCATE TABLE sessions CASCADE",
		"TRUNCATE TABLE user_words CASCADE",
		"TRUNCATE TABLE words CASCADE",
		"TRUNCATE TABLE users CASCADE",
	} {
		_, err := db.Exec(query)
		require.NoError(t, err)
	}

	return db
}

func integrationLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func TestUserServiceIntegration_CreateAndLookup(t *testing.T) {
	db := sharedTestDBSetup(t)
	svc := NewUserService(db, integrationLogger())
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotZero(t, user.ID)

	byName, err := svc.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byID, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = svc.CreateUser(ctx, "alice")
	assert.Equal(t, contextutils.ErrorCodeRecordExists, contextutils.GetErrorCode(err))

	_, err = svc.GetUserByUsername(ctx, "nobody")
	assert.Equal(t, contextutils.ErrorCodeRecordNotFound, contextutils.GetErrorCode(err))
}

func TestWordServiceIntegration_SelectionAndExclusions(t *testing.T) {
	db := sharedTestDBSetup(t)
	logger := integrationLogger()
	wordSvc := NewWordService(db, logger)
	userSvc := NewUserService(db, logger)
	ctx := context.Background()

	user, err := userSvc.CreateUser(ctx, "bob")
	require.NoError(t, err)

	apple, err := wordSvc.FindOrCreateWord(ctx, "apple")
	require.NoError(t, err)
	banana, err := wordSvc.FindOrCreateWord(ctx, "banana")
	require.NoError(t, err)

	again, err := wordSvc.FindOrCreateWord(ctx, "apple")
	require.NoError(t, err)
	assert.Equal(t, apple.ID, again.ID)

	total, err := wordSvc.CountWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	unseen, err := wordSvc.CountUnseenWords(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unseen)

	// With both words excluded the pool is exhausted: (nil, nil).
	word, err := wordSvc.GetNextWord(ctx, user.ID, []int{apple.ID, banana.ID})
	require.NoError(t, err)
	assert.Nil(t, word)

	word, err = wordSvc.GetNextWord(ctx, user.ID, []int{apple.ID})
	require.NoError(t, err)
	require.NotNil(t, word)
	assert.Equal(t, banana.ID, word.ID)
}

func TestWordServiceIntegration_DueWordsComeFirst(t *testing.T) {
	db := sharedTestDBSetup(t)
	logger := integrationLogger()
	wordSvc := NewWordService(db, logger)
	userSvc := NewUserService(db, logger)
	learningSvc := NewLearningService(db, logger)
	ctx := context.Background()

	user, err := userSvc.CreateUser(ctx, "carol")
	require.NoError(t, err)

	apple, err := wordSvc.FindOrCreateWord(ctx, "apple")
	require.NoError(t, err)
	_, err = wordSvc.FindOrCreateWord(ctx, "banana")
	require.NoError(t, err)

	// A wrong answer puts the word into the wrongbook, due immediately.
	require.NoError(t, learningSvc.RecordAnswer(ctx, user.ID, apple.ID, false))

	due, err := wordSvc.CountDueWords(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, due)

	word, err := wordSvc.GetNextWord(ctx, user.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, word)
	assert.Equal(t, apple.ID, word.ID, "due review words take priority over unseen words")
}

func TestLearningServiceIntegration_ReviewLifecycle(t *testing.T) {
	db := sharedTestDBSetup(t)
	logger := integrationLogger()
	wordSvc := NewWordService(db, logger)
	userSvc := NewUserService(db, logger)
	learningSvc := NewLearningService(db, logger)
	ctx := context.Background()

	user, err := userSvc.CreateUser(ctx, "dave")
	require.NoError(t, err)
	word, err := wordSvc.FindOrCreateWord(ctx, "cherry")
	require.NoError(t, err)

	// A correct answer on a never-seen word records nothing.
	require.NoError(t, learningSvc.RecordAnswer(ctx, user.ID, word.ID, true))
	uw, err := learningSvc.GetUserWord(ctx, user.ID, word.ID)
	require.NoError(t, err)
	assert.Nil(t, uw)

	// A wrong answer creates the row in the wrongbook.
	require.NoError(t, learningSvc.RecordAnswer(ctx, user.ID, word.ID, false))
	uw, err = learningSvc.GetUserWord(ctx, user.ID, word.ID)
	require.NoError(t, err)
	require.NotNil(t, uw)
	assert.True(t, uw.InWrongbook)
	assert.Equal(t, 0, uw.CorrectCount)

	// Three correct answers walk the interval ladder and exit the wrongbook.
	for i := 1; i <= 3; i++ {
		require.NoError(t, learningSvc.RecordAnswer(ctx, user.ID, word.ID, true))
		uw, err = learningSvc.GetUserWord(ctx, user.ID, word.ID)
		require.NoError(t, err)
		require.NotNil(t, uw)
		assert.Equal(t, i, uw.CorrectCount)
	}
	assert.False(t, uw.InWrongbook)
	require.True(t, uw.NextReview.Valid)
	assert.True(t, uw.NextReview.Time.After(time.Now()))

	// One wrong answer resets everything.
	require.NoError(t, learningSvc.RecordAnswer(ctx, user.ID, word.ID, false))
	uw, err = learningSvc.GetUserWord(ctx, user.ID, word.ID)
	require.NoError(t, err)
	require.NotNil(t, uw)
	assert.True(t, uw.InWrongbook)
	assert.Equal(t, 0, uw.CorrectCount)
	assert.Equal(t, 0, uw.SRSInterval)
}

func TestSessionServiceIntegration_AttemptsAndScore(t *testing.T) {
	db := sharedTestDBSetup(t)
	logger := integrationLogger()
	wordSvc := NewWordService(db, logger)
	userSvc := NewUserService(db, logger)
	sessionSvc := NewSessionService(db, logger)
	ctx := context.Background()

	user, err := userSvc.CreateUser(ctx, "erin")
	require.NoError(t, err)
	word, err := wordSvc.FindOrCreateWord(ctx, "grape")
	require.NoError(t, err)

	session, err := sessionSvc.CreateSession(ctx, user.ID)
	require.NoError(t, err)
	assert.NotZero(t, session.ID)

	fetched, err := sessionSvc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, fetched.UserID)

	_, err = sessionSvc.GetSession(ctx, session.ID+1000)
	assert.Equal(t, contextutils.ErrorCodeSessionNotFound, contextutils.GetErrorCode(err))

	attempt := &models.QuestionAttempt{
		SessionID:     session.ID,
		WordID:        word.ID,
		QuestionText:  `What does "grape" mean?`,
		CorrectAnswer: "a small round fruit",
		UserAnswer:    sql.NullString{String: "a small round fruit", Valid: true},
		IsCorrect:     sql.NullBool{Bool: true, Valid: true},
	}
	require.NoError(t, sessionSvc.RecordAttempt(ctx, attempt))
	require.NoError(t, sessionSvc.ApplyAnswer(ctx, session.ID, true))

	count, err := sessionSvc.CountAttempts(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	asked, err := sessionSvc.GetAskedWordIDs(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{word.ID}, asked)

	fetched, err = sessionSvc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.TotalQuestions)
	assert.Equal(t, 1, fetched.CorrectAnswers)
	assert.Equal(t, 1, fetched.Score)
}
