package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexiboost/internal/config"
	"lexiboost/internal/models"
	"lexiboost/internal/observability"
	"lexiboost/internal/services"
	contextutils "lexiboost/internal/utils"
)

type stubUserService struct {
	services.UserServiceInterface

	createFn     func(username string) (*models.User, error)
	byUsernameFn func(username string) (*models.User, error)
	byIDFn       func(id int) (*models.User, error)
}

func (s *stubUserService) CreateUser(_ context.Context, username string) (*models.User, error) {
	return s.createFn(username)
}

func (s *stubUserService) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return s.byUsernameFn(username)
}

func (s *stubUserService) GetUserByID(_ context.Context, id int) (*models.User, error) {
	return s.byIDFn(id)
}

type stubWordService struct {
	services.WordServiceInterface

	getWordFn      func(id int) (*models.Word, error)
	nextWordFn     func(userID int, excluded []int) (*models.Word, error)
	findOrCreateFn func(word string) (*models.Word, error)
	countWordsFn   func() (int, error)
	countDueFn     func(userID int) (int, error)
}

func (s *stubWordService) GetWord(_ context.Context, id int) (*models.Word, error) {
	return s.getWordFn(id)
}

func (s *stubWordService) GetNextWord(_ context.Context, userID int, excluded []int) (*models.Word, error) {
	return s.nextWordFn(userID, excluded)
}

func (s *stubWordService) FindOrCreateWord(_ context.Context, word string) (*models.Word, error) {
	return s.findOrCreateFn(word)
}

func (s *stubWordService) CountWords(_ context.Context) (int, error) {
	if s.countWordsFn == nil {
		return 1, nil
	}
	return s.countWordsFn()
}

func (s *stubWordService) CountDueWords(_ context.Context, userID int) (int, error) {
	if s.countDueFn == nil {
		return 0, nil
	}
	return s.countDueFn(userID)
}

type stubSessionService struct {
	services.SessionServiceInterface

	createFn        func(userID int) (*models.Session, error)
	getFn           func(sessionID int) (*models.Session, error)
	countFn         func(sessionID int) (int, error)
	askedFn         func(sessionID int) ([]int, error)
	recordedAttempt *models.QuestionAttempt
	appliedCorrect  *bool
}

func (s *stubSessionService) CreateSession(_ context.Context, userID int) (*models.Session, error) {
	return s.createFn(userID)
}

func (s *stubSessionService) GetSession(_ context.Context, sessionID int) (*models.Session, error) {
	return s.getFn(sessionID)
}

func (s *stubSessionService) CountAttempts(_ context.Context, sessionID int) (int, error) {
	return s.countFn(sessionID)
}

func (s *stubSessionService) GetAskedWordIDs(_ context.Context, sessionID int) ([]int, error) {
	if s.askedFn == nil {
		return nil, nil
	}
	return s.askedFn(sessionID)
}

func (s *stubSessionService) RecordAttempt(_ context.Context, attempt *models.QuestionAttempt) error {
	s.recordedAttempt = attempt
	return nil
}

func (s *stubSessionService) ApplyAnswer(_ context.Context, _ int, isCorrect bool) error {
	s.appliedCorrect = &isCorrect
	return nil
}

type stubLearningService struct {
	services.LearningServiceInterface

	statsFn        func(userID int) (*models.UserStats, error)
	wrongbookAddFn func(userID, wordID int) (bool, error)
	recordedAnswer *bool
}

func (s *stubLearningService) GetUserStats(_ context.Context, userID int) (*models.UserStats, error) {
	return s.statsFn(userID)
}

func (s *stubLearningService) AddToWrongbook(_ context.Context, userID, wordID int) (bool, error) {
	return s.wrongbookAddFn(userID, wordID)
}

func (s *stubLearningService) RecordAnswer(_ context.Context, _, _ int, isCorrect bool) error {
	s.recordedAnswer = &isCorrect
	return nil
}

type stubPreloader struct {
	services.PreloaderServiceInterface

	started    []int
	stopped    []int
	nextFn     func(sessionID int) *models.PreloadedQuestion
	statusFn   func(sessionID int) models.QueueStatus
	forWordFn  func(wordID int) *models.Explanation
	cacheGetFn func(word, level string) *models.Explanation
	cachedPuts int
}

func (s *stubPreloader) StartSession(_ context.Context, sessionID, _ int) {
	s.started = append(s.started, sessionID)
}

func (s *stubPreloader) StopSession(_ context.Context, sessionID int) {
	s.stopped = append(s.stopped, sessionID)
}

func (s *stubPreloader) GetNextQuestion(_ context.Context, sessionID int) *models.PreloadedQuestion {
	if s.nextFn == nil {
		return nil
	}
	return s.nextFn(sessionID)
}

func (s *stubPreloader) GetQueueStatus(_ context.Context, sessionID int) models.QueueStatus {
	if s.statusFn == nil {
		return models.QueueStatus{}
	}
	return s.statusFn(sessionID)
}

func (s *stubPreloader) GetExplanationForWord(_ context.Context, wordID int) *models.Explanation {
	if s.forWordFn == nil {
		return nil
	}
	return s.forWordFn(wordID)
}

func (s *stubPreloader) GetCachedExplanation(word, level string) *models.Explanation {
	if s.cacheGetFn == nil {
		return nil
	}
	return s.cacheGetFn(word, level)
}

func (s *stubPreloader) PutCachedExplanation(_, _ string, _ *models.Explanation) {
	s.cachedPuts++
}

type stubExplainer struct {
	explainFn func(word, level string) (*models.Explanation, error)
}

func (s *stubExplainer) Explain(_ context.Context, word, level string) (*models.Explanation, error) {
	if s.explainFn == nil {
		return nil, contextutils.ErrExplainerUnavailable
	}
	return s.explainFn(word, level)
}

func handlerTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func handlerTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{SessionSecret: "test-secret"},
		Quiz: config.QuizConfig{
			MaxQuestionsPerSession: 50,
			HoverZhEnabled:         true,
		},
		Explainer: config.ExplainerConfig{DefaultLevel: "k12", MockMode: true},
	}
}

func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions(config.SessionName, store))
	return router
}

func TestUserHandler_CreateUser(t *testing.T) {
	userSvc := &stubUserService{
		createFn: func(username string) (*models.User, error) {
			return &models.User{ID: 7, Username: username, CreatedAt: time.Now()}, nil
		},
	}
	handler := NewUserHandler(userSvc, &stubLearningService{}, &stubWordService{}, handlerTestConfig(), handlerTestLogger())

	router := newSessionRouter()
	router.POST("/api/users", handler.CreateUser)

	body := bytes.NewBufferString(`{"username": "alice"}`)
	req, _ := http.NewRequest("POST", "/api/users", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response models.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "alice", response.Username)
	assert.NotEmpty(t, w.Result().Cookies(), "login cookie expected")
}

func TestUserHandler_CreateUser_Invalid(t *testing.T) {
	handler := NewUserHandler(&stubUserService{}, &stubLearningService{}, &stubWordService{}, handlerTestConfig(), handlerTestLogger())

	router := newSessionRouter()
	router.POST("/api/users", handler.CreateUser)

	req, _ := http.NewRequest("POST", "/api/users", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_CreateUser_Duplicate(t *testing.T) {
	userSvc := &stubUserService{
		createFn: func(string) (*models.User, error) {
			return nil, contextutils.ErrRecordExists
		},
	}
	handler := NewUserHandler(userSvc, &stubLearningService{}, &stubWordService{}, handlerTestConfig(), handlerTestLogger())

	router := newSessionRouter()
	router.POST("/api/users", handler.CreateUser)

	req, _ := http.NewRequest("POST", "/api/users", bytes.NewBufferString(`{"username": "alice"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUserHandler_GetUser_ByUsernameAndByID(t *testing.T) {
	alice := &models.User{ID: 7, Username: "alice"}
	userSvc := &stubUserService{
		byUsernameFn: func(username string) (*models.User, error) {
			if username == "alice" {
				return alice, nil
			}
			return nil, contextutils.ErrRecordNotFound
		},
		byIDFn: func(id int) (*models.User, error) {
			if id == 7 {
				return alice, nil
			}
			return nil, contextutils.ErrRecordNotFound
		},
	}
	handler := NewUserHandler(userSvc, &stubLearningService{}, &stubWordService{}, handlerTestConfig(), handlerTestLogger())

	router := newSessionRouter()
	router.GET("/api/users/:user", handler.GetUser)

	for _, ref := range []string{"alice", "7"} {
		req, _ := http.NewRequest("GET", "/api/users/"+ref, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "lookup by %q", ref)
	}

	req, _ := http.NewRequest("GET", "/api/users/nobody", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserHandler_Me_Unauthenticated(t *testing.T) {
	handler := NewUserHandler(&stubUserService{}, &stubLearningService{}, &stubWordService{}, handlerTestConfig(), handlerTestLogger())

	router := newSessionRouter()
	router.GET("/api/me", handler.Me)

	req, _ := http.NewRequest("GET", "/api/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_GetStats(t *testing.T) {
	userSvc := &stubUserService{
		byIDFn: func(id int) (*models.User, error) {
			return &models.User{ID: id, Username: "alice"}, nil
		},
	}
	learningSvc := &stubLearningService{
		statsFn: func(userID int) (*models.UserStats, error) {
			return &models.UserStats{TotalScore: 42, DailyScore: 5, WrongbookCount: 3, SessionsPlayed: 9}, nil
		},
	}
	handler := NewUserHandler(userSvc, learningSvc, &stubWordService{}, handlerTestConfig(), handlerTestLogger())

	router := newSessionRouter()
	router.GET("/api/users/:user/stats", handler.GetStats)

	req, _ := http.NewRequest("GET", "/api/users/7/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var stats models.UserStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 42, stats.TotalScore)
	assert.Equal(t, 3, stats.WrongbookCount)
}

func TestUserHandler_ImportWrongbook(t *testing.T) {
	userSvc := &stubUserService{
		byIDFn: func(id int) (*models.User, error) {
			return &models.User{ID: id, Username: "alice"}, nil
		},
	}
	nextWordID := 100
	wordSvc := &stubWordService{
		findOrCreateFn: func(word string) (*models.Word, error) {
			nextWordID++
			return &models.Word{ID: nextWordID, Word: word}, nil
		},
	}
	learningSvc := &stubLearningService{
		wrongbookAddFn: func(_, wordID int) (bool, error) {
			// Pretend the second word was already in the wrongbook.
			return wordID != 102, nil
		},
	}
	handler := NewUserHandler(userSvc, learningSvc, wordSvc, handlerTestConfig(), handlerTestLogger())

	router := newSessionRouter()
	router.POST("/api/users/:user/wrongbook/import", handler.ImportWrongbook)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "words.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("word\napple\nBanana\n\ncherry\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest("POST", "/api/users/7/wrongbook/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 2, response["imported_count"])
	assert.Equal(t, 1, response["skipped_count"])
}

func newQuizHandlerForTest(
	wordSvc *stubWordService,
	sessionSvc *stubSessionService,
	learningSvc *stubLearningService,
	explainer *stubExplainer,
	preloader *stubPreloader,
) *QuizHandler {
	userSvc := &stubUserService{
		byIDFn: func(id int) (*models.User, error) {
			return &models.User{ID: id, Username: "alice"}, nil
		},
	}
	return NewQuizHandler(userSvc, wordSvc, sessionSvc, learningSvc, explainer, preloader, handlerTestConfig(), handlerTestLogger())
}

func TestQuizHandler_StartSession(t *testing.T) {
	sessionSvc := &stubSessionService{
		createFn: func(userID int) (*models.Session, error) {
			return &models.Session{ID: 11, UserID: userID}, nil
		},
	}
	preloader := &stubPreloader{}
	handler := newQuizHandlerForTest(&stubWordService{}, sessionSvc, &stubLearningService{}, &stubExplainer{}, preloader)

	router := newSessionRouter()
	router.POST("/api/users/:user/session/start", handler.StartSession)

	req, _ := http.NewRequest("POST", "/api/users/7/session/start", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []int{11}, preloader.started)
}

func TestQuizHandler_GetQuestion_SessionNotFound(t *testing.T) {
	sessionSvc := &stubSessionService{
		getFn: func(int) (*models.Session, error) {
			return nil, contextutils.ErrSessionNotFound
		},
	}
	handler := newQuizHandlerForTest(&stubWordService{}, sessionSvc, &stubLearningService{}, &stubExplainer{}, &stubPreloader{})

	router := newSessionRouter()
	router.GET("/api/sessions/:id/question", handler.GetQuestion)

	req, _ := http.NewRequest("GET", "/api/sessions/99/question", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuizHandler_GetQuestion_Preloaded(t *testing.T) {
	sessionSvc := &stubSessionService{
		getFn: func(id int) (*models.Session, error) {
			return &models.Session{ID: id, UserID: 7}, nil
		},
		countFn: func(int) (int, error) { return 4, nil },
	}
	preloader := &stubPreloader{
		nextFn: func(int) *models.PreloadedQuestion {
			return &models.PreloadedQuestion{
				WordID:   31,
				WordText: "apple",
				Choices: []models.BilingualPair{
					{EN: "a fruit", ZH: "水果"},
					{EN: "a tool", ZH: "工具"},
					{EN: "a place", ZH: "地方"},
					{EN: "a color", ZH: "颜色"},
				},
				CorrectChoice: models.BilingualPair{EN: "a fruit", ZH: "水果"},
			}
		},
	}
	handler := newQuizHandlerForTest(&stubWordService{}, sessionSvc, &stubLearningService{}, &stubExplainer{}, preloader)

	router := newSessionRouter()
	router.GET("/api/sessions/:id/question", handler.GetQuestion)

	req, _ := http.NewRequest("GET", "/api/sessions/11/question", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "11_31", response["question_id"])
	assert.Equal(t, float64(5), response["question_number"])
	assert.Equal(t, "preloaded", response["source"])
	assert.Contains(t, response["question_text"], `"apple"`)
}

func TestQuizHandler_GetQuestion_MaxQuestionsReached(t *testing.T) {
	sessionSvc := &stubSessionService{
		getFn: func(id int) (*models.Session, error) {
			return &models.Session{ID: id, UserID: 7}, nil
		},
		countFn: func(int) (int, error) { return 50, nil },
	}
	preloader := &stubPreloader{}
	handler := newQuizHandlerForTest(&stubWordService{}, sessionSvc, &stubLearningService{}, &stubExplainer{}, preloader)

	router := newSessionRouter()
	router.GET("/api/sessions/:id/question", handler.GetQuestion)

	req, _ := http.NewRequest("GET", "/api/sessions/11/question", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["session_complete"])
	assert.Equal(t, "max_questions_reached", response["reason"])
	assert.Equal(t, []int{11}, preloader.stopped, "preloader stops when the session completes")
}

func TestQuizHandler_GetQuestion_CompletionReasons(t *testing.T) {
	tests := []struct {
		name       string
		totalWords int
		wrongbook  int
		reason     string
	}{
		{name: "empty vocabulary", totalWords: 0, wrongbook: 0, reason: "no_words_in_db"},
		{name: "everything learned", totalWords: 10, wrongbook: 0, reason: "all_words_completed"},
		{name: "reviews scheduled later", totalWords: 10, wrongbook: 4, reason: "no_words_due"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessionSvc := &stubSessionService{
				getFn: func(id int) (*models.Session, error) {
					return &models.Session{ID: id, UserID: 7}, nil
				},
				countFn: func(int) (int, error) { return 3, nil },
			}
			wordSvc := &stubWordService{
				nextWordFn:   func(int, []int) (*models.Word, error) { return nil, nil },
				countWordsFn: func() (int, error) { return tt.totalWords, nil },
			}
			learningSvc := &stubLearningService{
				statsFn: func(int) (*models.UserStats, error) {
					return &models.UserStats{WrongbookCount: tt.wrongbook}, nil
				},
			}
			handler := newQuizHandlerForTest(wordSvc, sessionSvc, learningSvc, &stubExplainer{}, &stubPreloader{})

			router := newSessionRouter()
			router.GET("/api/sessions/:id/question", handler.GetQuestion)

			req, _ := http.NewRequest("GET", "/api/sessions/11/question", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, true, response["session_complete"])
			assert.Equal(t, tt.reason, response["reason"])
		})
	}
}

func TestQuizHandler_GetQuestion_FallbackGeneration(t *testing.T) {
	sessionSvc := &stubSessionService{
		getFn: func(id int) (*models.Session, error) {
			return &models.Session{ID: id, UserID: 7}, nil
		},
		countFn: func(int) (int, error) { return 0, nil },
	}
	wordSvc := &stubWordService{
		nextWordFn: func(int, []int) (*models.Word, error) {
			return &models.Word{ID: 31, Word: "apple"}, nil
		},
	}
	explainer := &stubExplainer{
		explainFn: func(word, level string) (*models.Explanation, error) {
			return &models.Explanation{
				Word:          word,
				WordZH:        "苹果",
				DefinitionEN:  "a round fruit",
				DefinitionZH:  "一种圆形水果",
				DistractorsEN: []string{"a tool", "a place", "a color"},
				DistractorsZH: []string{"工具", "地方", "颜色"},
			}, nil
		},
	}
	preloader := &stubPreloader{}
	handler := newQuizHandlerForTest(wordSvc, sessionSvc, &stubLearningService{}, explainer, preloader)

	router := newSessionRouter()
	router.GET("/api/sessions/:id/question", handler.GetQuestion)

	req, _ := http.NewRequest("GET", "/api/sessions/11/question", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "fallback", response["source"])
	assert.Equal(t, 1, preloader.cachedPuts, "fresh explanation lands in the shared cache")

	question := response["question"].(map[string]interface{})
	assert.Len(t, question["choices"], 4)
	assert.NotEmpty(t, question["sentence"])
}

func TestQuizHandler_SubmitAnswer(t *testing.T) {
	sessionSvc := &stubSessionService{
		getFn: func(id int) (*models.Session, error) {
			return &models.Session{ID: id, UserID: 7}, nil
		},
	}
	wordSvc := &stubWordService{
		getWordFn: func(id int) (*models.Word, error) {
			return &models.Word{ID: id, Word: "apple"}, nil
		},
	}
	learningSvc := &stubLearningService{}
	preloader := &stubPreloader{
		forWordFn: func(wordID int) *models.Explanation {
			return &models.Explanation{
				Word:         "apple",
				DefinitionEN: "a round fruit",
				DefinitionZH: "一种圆形水果",
			}
		},
	}
	handler := newQuizHandlerForTest(wordSvc, sessionSvc, learningSvc, &stubExplainer{}, preloader)

	router := newSessionRouter()
	router.POST("/api/sessions/:id/answer", handler.SubmitAnswer)

	body := bytes.NewBufferString(`{"word_id": 31, "answer": "a round fruit"}`)
	req, _ := http.NewRequest("POST", "/api/sessions/11/answer", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, true, response["correct"])
	assert.Equal(t, "a round fruit", response["explanation_en"])

	require.NotNil(t, sessionSvc.recordedAttempt)
	assert.Equal(t, 31, sessionSvc.recordedAttempt.WordID)
	assert.True(t, sessionSvc.recordedAttempt.IsCorrect.Bool)
	require.NotNil(t, sessionSvc.appliedCorrect)
	assert.True(t, *sessionSvc.appliedCorrect)
	require.NotNil(t, learningSvc.recordedAnswer)
	assert.True(t, *learningSvc.recordedAnswer)
}

func TestQuizHandler_SubmitAnswer_Wrong(t *testing.T) {
	sessionSvc := &stubSessionService{
		getFn: func(id int) (*models.Session, error) {
			return &models.Session{ID: id, UserID: 7}, nil
		},
	}
	wordSvc := &stubWordService{
		getWordFn: func(id int) (*models.Word, error) {
			return &models.Word{ID: id, Word: "apple"}, nil
		},
	}
	learningSvc := &stubLearningService{}
	preloader := &stubPreloader{
		forWordFn: func(int) *models.Explanation {
			return &models.Explanation{Word: "apple", DefinitionEN: "a round fruit"}
		},
	}
	handler := newQuizHandlerForTest(wordSvc, sessionSvc, learningSvc, &stubExplainer{}, preloader)

	router := newSessionRouter()
	router.POST("/api/sessions/:id/answer", handler.SubmitAnswer)

	body := bytes.NewBufferString(`{"word_id": 31, "answer": "a tool"}`)
	req, _ := http.NewRequest("POST", "/api/sessions/11/answer", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, false, response["correct"])
	require.NotNil(t, learningSvc.recordedAnswer)
	assert.False(t, *learningSvc.recordedAnswer)
}

func TestQuizHandler_StopSessionAndStatus(t *testing.T) {
	preloader := &stubPreloader{
		statusFn: func(sessionID int) models.QueueStatus {
			return models.QueueStatus{QueueSize: 3, WorkerAlive: true, Capacity: 5}
		},
	}
	handler := newQuizHandlerForTest(&stubWordService{}, &stubSessionService{}, &stubLearningService{}, &stubExplainer{}, preloader)

	router := newSessionRouter()
	router.POST("/api/sessions/:id/stop", handler.StopSession)
	router.GET("/api/preloader/status/:id", handler.PreloaderStatus)

	req, _ := http.NewRequest("POST", "/api/sessions/11/stop", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{11}, preloader.stopped)

	req, _ = http.NewRequest("GET", "/api/preloader/status/11", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var status models.QueueStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 3, status.QueueSize)
	assert.True(t, status.WorkerAlive)
}

func TestQuizHandler_GetConfig(t *testing.T) {
	handler := newQuizHandlerForTest(&stubWordService{}, &stubSessionService{}, &stubLearningService{}, &stubExplainer{}, &stubPreloader{})

	router := newSessionRouter()
	router.GET("/api/config", handler.GetConfig)

	req, _ := http.NewRequest("GET", "/api/config", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, float64(50), response["max_questions_per_session"])
	assert.Equal(t, true, response["hover_zh_enabled"])
}

func TestNewRouter_HealthAndNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := handlerTestConfig()
	cfg.Server.CORSOrigins = []string{"http://localhost:5173"}

	router := NewRouter(
		cfg,
		&stubUserService{},
		&stubWordService{},
		&stubSessionService{},
		&stubLearningService{},
		&stubExplainer{},
		&stubPreloader{},
		handlerTestLogger(),
	)

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "ok"))

	req, _ = http.NewRequest("GET", "/does-not-exist", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
