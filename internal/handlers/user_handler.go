package handlers

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lexiboost/internal/config"
	"lexiboost/internal/middleware"
	"lexiboost/internal/observability"
	"lexiboost/internal/services"
	contextutils "lexiboost/internal/utils"
)

// UserHandler handles user accounts, stats and wrongbook imports.
type UserHandler struct {
	userService     services.UserServiceInterface
	learningService services.LearningServiceInterface
	wordService     services.WordServiceInterface
	cfg             *config.Config
	logger          *observability.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	userService services.UserServiceInterface,
	learningService services.LearningServiceInterface,
	wordService services.WordServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *UserHandler {
	return &UserHandler{
		userService:     userService,
		learningService: learningService,
		wordService:     wordService,
		cfg:             cfg,
		logger:          logger,
	}
}

// CreateUserRequest is the payload for POST /api/users.
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
}

// CreateUser registers a new learner and logs them in.
func (h *UserHandler) CreateUser(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_user")
	defer observability.FinishSpan(span, nil)

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeValidationFailed,
			contextutils.SeverityWarn,
			"Invalid user payload",
			"username is required and must be at most 64 characters",
			err,
		))
		return
	}

	user, err := h.userService.CreateUser(ctx, req.Username)
	if err != nil {
		h.logger.Error(ctx, "Failed to create user", err, map[string]interface{}{
			"username": req.Username,
		})
		middleware.HandleAppError(c, err)
		return
	}

	if err := SetUserIDInSession(c, user.ID); err != nil {
		h.logger.Warn(ctx, "Failed to persist session cookie", map[string]interface{}{
			"error":   err.Error(),
			"user_id": user.ID,
		})
	}

	span.SetAttributes(observability.AttributeUserID(user.ID))
	c.JSON(http.StatusCreated, user)
}

// GetUser looks up a learner by username or ID and logs them in.
func (h *UserHandler) GetUser(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_user")
	defer observability.FinishSpan(span, nil)

	ref := strings.TrimSpace(c.Param("user"))
	if ref == "" {
		middleware.HandleAppError(c, contextutils.ErrMissingRequired)
		return
	}

	user, err := resolveUser(ctx, h.userService, ref)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	if err := SetUserIDInSession(c, user.ID); err != nil {
		h.logger.Warn(ctx, "Failed to persist session cookie", map[string]interface{}{
			"error":   err.Error(),
			"user_id": user.ID,
		})
	}

	c.JSON(http.StatusOK, user)
}

// Me returns the user associated with the cookie session.
func (h *UserHandler) Me(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "me")
	defer observability.FinishSpan(span, nil)

	userID, ok := GetUserIDFromSession(c)
	if !ok {
		middleware.HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetStats returns aggregate score and wrongbook counters for a learner.
func (h *UserHandler) GetStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_stats")
	defer observability.FinishSpan(span, nil)

	user, err := resolveUser(ctx, h.userService, c.Param("user"))
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}
	userID := user.ID
	span.SetAttributes(observability.AttributeUserID(userID))

	stats, err := h.learningService.GetUserStats(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "Failed to load user stats", err, map[string]interface{}{
			"user_id": userID,
		})
		middleware.HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ImportWrongbook ingests a CSV upload of words (one word per row, first
// column) and puts each straight into the learner's wrongbook.
func (h *UserHandler) ImportWrongbook(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "import_wrongbook")
	defer observability.FinishSpan(span, nil)

	user, err := resolveUser(ctx, h.userService, c.Param("user"))
	if err != nil {
		middleware.HandleAppError(c, err)
		return
	}
	userID := user.ID
	span.SetAttributes(observability.AttributeUserID(userID))

	fileHeader, err := c.FormFile("file")
	if err != nil {
		middleware.HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeMissingRequired,
			contextutils.SeverityWarn,
			"Missing CSV upload",
			"Attach the word list as a multipart field named 'file'",
			err,
		))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		middleware.HandleAppError(c, contextutils.WrapError(err, "failed to open uploaded file"))
		return
	}
	defer func() { _ = file.Close() }()

	imported, skipped, err := h.importWords(ctx, userID, file)
	if err != nil {
		h.logger.Error(ctx, "Wrongbook import failed", err, map[string]interface{}{
			"user_id":  userID,
			"filename": fileHeader.Filename,
		})
		middleware.HandleAppError(c, err)
		return
	}

	h.logger.Info(ctx, "Wrongbook import finished", map[string]interface{}{
		"user_id":        userID,
		"imported_count": imported,
		"skipped_count":  skipped,
	})
	c.JSON(http.StatusOK, gin.H{
		"imported_count": imported,
		"skipped_count":  skipped,
	})
}

// importWords walks the CSV rows, creating word rows as needed and adding
// each to the wrongbook. Rows already in the wrongbook count as skipped.
func (h *UserHandler) importWords(ctx context.Context, userID int, r io.Reader) (imported, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return imported, skipped, contextutils.WrapError(readErr, "failed to parse CSV")
		}
		if len(record) == 0 {
			continue
		}

		wordText := strings.ToLower(strings.TrimSpace(record[0]))
		if wordText == "" || wordText == "word" {
			// Blank rows and a leading header row are ignored.
			continue
		}

		word, findErr := h.wordService.FindOrCreateWord(ctx, wordText)
		if findErr != nil {
			return imported, skipped, findErr
		}

		added, addErr := h.learningService.AddToWrongbook(ctx, userID, word.ID)
		if addErr != nil {
			return imported, skipped, addErr
		}
		if added {
			imported++
		} else {
			skipped++
		}
	}

	return imported, skipped, nil
}
