package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"lexiboost/internal/config"
	"lexiboost/internal/middleware"
	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	"lexiboost/internal/services"
	contextutils "lexiboost/internal/utils"
)

// Session completion reasons reported alongside session_complete.
const (
	completionMaxQuestions   = "max_questions_reached"
	completionNoWordsInDB    = "no_words_in_db"
	completionAllCompleted   = "all_words_completed"
	completionNothingDueWait = "no_words_due"
)

var completionMessages = map[string]string{
	completionMaxQuestions:   "Session complete! You reached the question limit.",
	completionNoWordsInDB:    "No words in the database yet. Import some words first.",
	completionAllCompleted:   "All words completed. Great work!",
	completionNothingDueWait: "No words due for review right now. Come back later.",
}

// QuizHandler handles quiz sessions, questions and answers.
type QuizHandler struct {
	userService     services.UserServiceInterface
	wordService     services.WordServiceInterface
	sessionService  services.SessionServiceInterface
	learningService services.LearningServiceInterface
	explainer       services.ExplanationServiceInterface
	preloader       services.PreloaderServiceInterface
	cfg             *config.Config
	logger          *observability.Logger
}

// NewQuizHandler creates a new QuizHandler
func NewQuizHandler(
	userService services.UserServiceInterface,
	wordService services.WordServiceInterface,
	sessionService services.SessionServiceInterface,
	learningService services.LearningServiceInterface,
	explainer services.ExplanationServiceInterface,
	preloader services.PreloaderServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *QuizHandler {
	return &QuizHandler{
		userService:     userService,
		wordService:     wordService,
		sessionService:  sessionService,
		learningService: learningService,
		explainer:       explainer,
		preloader:       preloader,
		cfg:             cfg,
		logger:          logger,
	}
}

// StartSession creates a session row and spins up its preload worker.
func (h *QuizHandler) StartSession(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "start_session")
	defer observability.FinishSpan(span, nil)

	user, err := resolveUser(ctx, h.userService, c.Param("user"))
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}
	userID := user.ID
	span.SetAttributes(observability.AttributeUserID(userID))

	session, err := h.sessionService.CreateSession(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "Failed to create session", err, map[string]interface{}{
			"user_id": userID,
		})
		middleware.HandleAppError(c, err)
		return
	}

	h.preloader.StartSession(ctx, session.ID, userID)
	span.SetAttributes(observability.AttributeSessionID(session.ID))

	c.JSON(http.StatusCreated, gin.H{
		"session":       session,
		"max_questions": h.cfg.Quiz.MaxQuestionsPerSession,
	})
}

// GetQuestion serves the next question for a session, preferring the preload
// queue and falling back to synchronous generation when it is empty.
func (h *QuizHandler) GetQuestion(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_question")
	defer observability.FinishSpan(span, nil)

	session, ok := h.sessionFromPath(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeSessionID(session.ID))

	attempts, err := h.sessionService.CountAttempts(ctx, session.ID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}
	if attempts >= h.cfg.Quiz.MaxQuestionsPerSession {
		h.completeSession(c, session.ID, completionMaxQuestions)
		return
	}

	question := h.preloader.GetNextQuestion(ctx, session.ID)
	source := "preloaded"
	if question == nil {
		source = "fallback"
		question, err = h.generateFallbackQuestion(ctx, session)
		if err != nil {
			middleware.HandleAppError(c, err)
			return
		}
	}
	if question == nil {
		h.completeSession(c, session.ID, h.completionReason(ctx, session.UserID))
		return
	}

	span.SetAttributes(
		observability.AttributeWordID(question.WordID),
		attribute.String("question.source", source),
	)

	c.JSON(http.StatusOK, gin.H{
		"question_id":     fmt.Sprintf("%d_%d", session.ID, question.WordID),
		"question_number": attempts + 1,
		"question_text":   fmt.Sprintf("What does %q mean?", question.WordText),
		"question":        question,
		"source":          source,
	})
}

// SubmitAnswerRequest is the payload for POST /api/sessions/:id/answer.
type SubmitAnswerRequest struct {
	WordID int    `json:"word_id" binding:"required"`
	Answer string `json:"answer" binding:"required"`
}

// SubmitAnswer grades an answer, records the attempt and updates the
// learner's review schedule.
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_answer")
	defer observability.FinishSpan(span, nil)

	session, ok := h.sessionFromPath(c)
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeSessionID(session.ID))

	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeValidationFailed,
			contextutils.SeverityWarn,
			"Invalid answer payload",
			"word_id and answer are required",
			err,
		))
		return
	}
	span.SetAttributes(observability.AttributeWordID(req.WordID))

	word, err := h.wordService.GetWord(ctx, req.WordID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	explanation := h.explanationForAnswer(ctx, word)

	correct := models.BilingualPair{EN: word.Definition}
	if explanation != nil {
		correct = models.BilingualPair{EN: explanation.DefinitionEN, ZH: explanation.DefinitionZH}
	}
	isCorrect := strings.TrimSpace(req.Answer) == correct.EN

	attempt := &models.QuestionAttempt{
		SessionID:     session.ID,
		WordID:        word.ID,
		QuestionText:  fmt.Sprintf("What does %q mean?", word.Word),
		CorrectAnswer: correct.EN,
		UserAnswer:    sql.NullString{String: req.Answer, Valid: true},
		IsCorrect:     sql.NullBool{Bool: isCorrect, Valid: true},
	}
	if explanation != nil {
		attempt.Explanation = sql.NullString{String: explanation.DefinitionZH, Valid: true}
	}
	if err := h.sessionService.RecordAttempt(ctx, attempt); err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	if err := h.sessionService.ApplyAnswer(ctx, session.ID, isCorrect); err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	if err := h.learningService.RecordAnswer(ctx, session.UserID, word.ID, isCorrect); err != nil {
		h.logger.Error(ctx, "Failed to record review progress", err, map[string]interface{}{
			"user_id": session.UserID,
			"word_id": word.ID,
		})
		middleware.HandleAppError(c, err)
		return
	}

	response := gin.H{
		"correct":        isCorrect,
		"correct_answer": correct,
	}
	if explanation != nil {
		response["explanation_en"] = explanation.DefinitionEN
		response["explanation_zh"] = explanation.DefinitionZH
	}
	c.JSON(http.StatusOK, response)
}

// StopSession shuts down the session's preload worker.
func (h *QuizHandler) StopSession(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "stop_session")
	defer observability.FinishSpan(span, nil)

	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid session ID format",
			"Session ID must be a valid integer",
			err,
		))
		return
	}
	span.SetAttributes(observability.AttributeSessionID(sessionID))

	h.preloader.StopSession(ctx, sessionID)
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

// PreloaderStatus reports the session's queue depth and worker liveness.
func (h *QuizHandler) PreloaderStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "preloader_status")
	defer observability.FinishSpan(span, nil)

	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid session ID format",
			"Session ID must be a valid integer",
			err,
		))
		return
	}
	span.SetAttributes(observability.AttributeSessionID(sessionID))

	c.JSON(http.StatusOK, h.preloader.GetQueueStatus(ctx, sessionID))
}

// GetConfig exposes the client-facing quiz settings.
func (h *QuizHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"max_questions_per_session": h.cfg.Quiz.MaxQuestionsPerSession,
		"hover_zh_enabled":          h.cfg.Quiz.HoverZhEnabled,
	})
}

// sessionFromPath resolves the :id path parameter into a session row,
// writing the error response itself on failure.
func (h *QuizHandler) sessionFromPath(c *gin.Context) (*models.Session, bool) {
	sessionID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid session ID format",
			"Session ID must be a valid integer",
			err,
		))
		return nil, false
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return nil, false
	}
	return session, true
}

// generateFallbackQuestion builds a question synchronously when the preload
// queue has nothing ready, sharing the explanation cache with the workers.
// Returns (nil, nil) when the learner's word pool is exhausted.
func (h *QuizHandler) generateFallbackQuestion(ctx context.Context, session *models.Session) (result0 *models.PreloadedQuestion, err error) {
	ctx, span := observability.TraceHandlerFunction(ctx, "generate_fallback_question",
		observability.AttributeSessionID(session.ID),
		observability.AttributeUserID(session.UserID),
	)
	defer observability.FinishSpan(span, &err)

	asked, err := h.sessionService.GetAskedWordIDs(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	word, err := h.wordService.GetNextWord(ctx, session.UserID, asked)
	if err != nil {
		return nil, err
	}
	if word == nil || word.Word == "" {
		return nil, nil
	}

	level := h.cfg.Explainer.DefaultLevel
	explanation := h.preloader.GetCachedExplanation(word.Word, level)
	if explanation == nil {
		explanation, err = h.explainer.Explain(ctx, word.Word, level)
		if err != nil {
			return nil, err
		}
		h.preloader.PutCachedExplanation(word.Word, level, explanation)
	}

	return services.BuildQuestion(word, level, explanation), nil
}

// explanationForAnswer finds the richest explanation available at grading
// time: the preload queues first, then the shared cache, then a fresh call.
// A provider failure degrades the response instead of failing the grade.
func (h *QuizHandler) explanationForAnswer(ctx context.Context, word *models.Word) *models.Explanation {
	if explanation := h.preloader.GetExplanationForWord(ctx, word.ID); explanation != nil {
		return explanation
	}

	level := h.cfg.Explainer.DefaultLevel
	if explanation := h.preloader.GetCachedExplanation(word.Word, level); explanation != nil {
		return explanation
	}

	explanation, err := h.explainer.Explain(ctx, word.Word, level)
	if err != nil {
		h.logger.Warn(ctx, "Explanation unavailable at grading time", map[string]interface{}{
			"error":   err.Error(),
			"word_id": word.ID,
		})
		return nil
	}
	h.preloader.PutCachedExplanation(word.Word, level, explanation)
	return explanation
}

// completionReason classifies why no further questions can be served.
func (h *QuizHandler) completionReason(ctx context.Context, userID int) string {
	total, err := h.wordService.CountWords(ctx)
	if err == nil && total == 0 {
		return completionNoWordsInDB
	}

	due, dueErr := h.wordService.CountDueWords(ctx, userID)
	if dueErr == nil && due > 0 {
		// Due words exist but were all asked this session already.
		return completionAllCompleted
	}

	stats, statsErr := h.learningService.GetUserStats(ctx, userID)
	if statsErr == nil && stats.WrongbookCount > 0 {
		return completionNothingDueWait
	}

	return completionAllCompleted
}

// completeSession reports a terminal state for the session and stops its
// preload worker.
func (h *QuizHandler) completeSession(c *gin.Context, sessionID int, reason string) {
	h.preloader.StopSession(c.Request.Context(), sessionID)

	c.JSON(http.StatusOK, gin.H{
		"session_complete": true,
		"reason":           reason,
		"message":          completionMessages[reason],
	})
}
