package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"lexiboost/internal/config"
	"lexiboost/internal/models"
	"lexiboost/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// PreloaderServiceInterface is the question preloading subsystem: one
// background worker per active quiz session keeps a bounded queue of
// ready-to-serve questions so the interactive fetch path rarely blocks
// on the slow explanation provider.
//
// Every operation on an unknown session id degrades to a safe no-op or
// empty result; none of them error for that case.
type PreloaderServiceInterface interface {
	StartSession(ctx context.Context, sessionID, userID int)
	StopSession(ctx context.Context, sessionID int)
	StopAll(ctx context.Context)
	GetNextQuestion(ctx context.Context, sessionID int) *models.PreloadedQuestion
	GetQueueStatus(ctx context.Context, sessionID int) models.QueueStatus
	GetExplanationForWord(ctx context.Context, wordID int) *models.Explanation
	GetCachedExplanation(word, level string) *models.Explanation
	PutCachedExplanation(word, level string, explanation *models.Explanation)
}

// genericFillerChoice pads the choice list when the explanation carries
// fewer than three distractors.
var genericFillerChoice = models.BilingualPair{
	EN: "A general concept or idea",
	ZH: "一般概念或想法",
}

// sessionState holds one session's queue and worker bookkeeping. Never
// shared across sessions.
type sessionState struct {
	userID int

	mu    sync.Mutex
	queue []*models.PreloadedQuestion

	stop chan struct{}
	done chan struct{}
}

func newSessionState(userID int) *sessionState {
	return &sessionState{
		userID: userID,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// PreloaderService owns the registry of active sessions and the shared
// explanation cache.
type PreloaderService struct {
	cfg          *config.PreloaderConfig
	defaultLevel string
	logger       *observability.Logger

	wordService    WordServiceInterface
	sessionService SessionServiceInterface
	explainer      ExplanationServiceInterface
	cache          *ExplanationCache

	mu     sync.Mutex
	states map[int]*sessionState
}

// NewPreloaderService creates a new preloader service instance
func NewPreloaderService(
	cfg *config.PreloaderConfig,
	defaultLevel string,
	wordService WordServiceInterface,
	sessionService SessionServiceInterface,
	explainer ExplanationServiceInterface,
	logger *observability.Logger,
) *PreloaderService {
	if defaultLevel == "" {
		defaultLevel = config.DefaultWordLevel
	}

	svc := &PreloaderService{
		cfg:            cfg,
		defaultLevel:   defaultLevel,
		logger:         logger,
		wordService:    wordService,
		sessionService: sessionService,
		explainer:      explainer,
		cache:          NewExplanationCache(cfg.CacheSize),
		states:         make(map[int]*sessionState),
	}

	logger.Info(context.Background(), "Question preloader initialized", map[string]interface{}{
		"queue_size":    cfg.QueueSize,
		"preload_ahead": cfg.PreloadAhead,
		"question_ttl":  cfg.QuestionTTL.String(),
	})

	return svc
}

// StartSession spawns the background worker for a session. Calling it
// again for a running session is an idempotent no-op.
func (p *PreloaderService) StartSession(ctx context.Context, sessionID, userID int) {
	ctx, span := observability.TracePreloaderFunction(ctx, "start_session",
		observability.AttributeSessionID(sessionID),
		observability.AttributeUserID(userID),
	)
	defer span.End()

	p.mu.Lock()
	if _, exists := p.states[sessionID]; exists {
		p.mu.Unlock()
		span.SetAttributes(attribute.Bool("preloader.already_running", true))
		p.logger.Warn(ctx, "Preloader already running for session", map[string]interface{}{
			"session_id": sessionID,
		})
		return
	}

	state := newSessionState(userID)
	p.states[sessionID] = state
	p.mu.Unlock()

	go p.preloadWorker(state, sessionID)

	p.logger.Info(ctx, "Started preloader worker for session", map[string]interface{}{
		"session_id": sessionID,
		"user_id":    userID,
	})
}

// StopSession signals the session's worker to stop, waits up to the
// configured timeout for it to exit, then reclaims the session's
// bookkeeping regardless. Safe to call repeatedly and for unknown ids.
//
// A worker wedged in a slow external call is not interrupted; it keeps
// running detached until that call returns, then observes the signal.
func (p *PreloaderService) StopSession(ctx context.Context, sessionID int) {
	ctx, span := observability.TracePreloaderFunction(ctx, "stop_session",
		observability.AttributeSessionID(sessionID),
	)
	defer span.End()

	p.mu.Lock()
	state, exists := p.states[sessionID]
	if !exists {
		p.mu.Unlock()
		return
	}
	delete(p.states, sessionID)
	p.mu.Unlock()

	close(state.stop)

	select {
	case <-state.done:
	case <-time.After(p.cfg.StopTimeout):
		span.SetAttributes(attribute.Bool("preloader.stop_timed_out", true))
		p.logger.Warn(ctx, "Preloader worker did not stop within timeout", map[string]interface{}{
			"session_id": sessionID,
			"timeout":    p.cfg.StopTimeout.String(),
		})
	}

	p.logger.Info(ctx, "Stopped preloader for session", map[string]interface{}{
		"session_id": sessionID,
	})
}

// StopAll drains every active session. Called on process shutdown.
func (p *PreloaderService) StopAll(ctx context.Context) {
	p.mu.Lock()
	ids := make([]int, 0, len(p.states))
	for id := range p.states {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.StopSession(ctx, id)
	}
}

// GetNextQuestion pops the oldest fresh question from the session's
// queue, discarding expired entries first. Nil means the caller should
// fall back to synchronous generation; it is not an error.
func (p *PreloaderService) GetNextQuestion(ctx context.Context, sessionID int) *models.PreloadedQuestion {
	_, span := observability.TracePreloaderFunction(ctx, "get_next_question",
		observability.AttributeSessionID(sessionID),
	)
	defer span.End()

	state := p.stateFor(sessionID)
	if state == nil {
		return nil
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	now := time.Now()
	for len(state.queue) > 0 && now.Sub(state.queue[0].CreatedAt) > p.cfg.QuestionTTL {
		expired := state.queue[0]
		state.queue = state.queue[1:]
		p.logger.Debug(ctx, "Discarded expired preloaded question", map[string]interface{}{
			"session_id": sessionID,
			"word":       expired.WordText,
		})
	}

	if len(state.queue) == 0 {
		span.SetAttributes(attribute.Bool("preloader.queue_empty", true))
		return nil
	}

	question := state.queue[0]
	state.queue = state.queue[1:]
	span.SetAttributes(observability.AttributeWordID(question.WordID))
	return question
}

// GetQueueStatus returns a read-only snapshot for observability. Unknown
// sessions report a zeroed snapshot.
func (p *PreloaderService) GetQueueStatus(ctx context.Context, sessionID int) models.QueueStatus {
	_, span := observability.TracePreloaderFunction(ctx, "get_queue_status",
		observability.AttributeSessionID(sessionID),
	)
	defer span.End()

	state := p.stateFor(sessionID)
	if state == nil {
		return models.QueueStatus{}
	}

	state.mu.Lock()
	size := len(state.queue)
	state.mu.Unlock()

	alive := true
	select {
	case <-state.done:
		alive = false
	default:
	}

	return models.QueueStatus{
		QueueSize:   size,
		WorkerAlive: alive,
		Capacity:    p.cfg.QueueSize,
	}
}

// GetExplanationForWord scans all live session queues, without removing
// anything, for a preloaded question carrying the word. Best effort; nil
// when no live queue holds the word.
func (p *PreloaderService) GetExplanationForWord(ctx context.Context, wordID int) *models.Explanation {
	_, span := observability.TracePreloaderFunction(ctx, "get_explanation_for_word",
		observability.AttributeWordID(wordID),
	)
	defer span.End()

	p.mu.Lock()
	states := make([]*sessionState, 0, len(p.states))
	for _, state := range p.states {
		states = append(states, state)
	}
	p.mu.Unlock()

	for _, state := range states {
		state.mu.Lock()
		for _, q := range state.queue {
			if q.WordID == wordID {
				exp := &models.Explanation{
					Word:         q.WordText,
					WordZH:       q.WordZH,
					DefinitionEN: q.ExplanationEN,
					DefinitionZH: q.ExplanationZH,
				}
				state.mu.Unlock()
				return exp
			}
		}
		state.mu.Unlock()
	}

	return nil
}

// GetCachedExplanation exposes the shared cache to the synchronous
// fallback path.
func (p *PreloaderService) GetCachedExplanation(word, level string) *models.Explanation {
	return p.cache.Get(word, level)
}

// PutCachedExplanation stores an explanation computed outside the
// preloader in the shared cache.
func (p *PreloaderService) PutCachedExplanation(word, level string, explanation *models.Explanation) {
	p.cache.Put(word, level, explanation)
}

func (p *PreloaderService) stateFor(sessionID int) *sessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[sessionID]
}

// preloadWorker is the per-session background loop. It tops the queue up
// to the preload-ahead threshold and idles when the queue is full
// enough. A single failed generation never terminates the worker.
func (p *PreloaderService) preloadWorker(state *sessionState, sessionID int) {
	defer close(state.done)

	ctx := context.Background()
	p.logger.Info(ctx, "Preloader worker started", map[string]interface{}{
		"session_id": sessionID,
	})

	for {
		select {
		case <-state.stop:
			p.logger.Info(ctx, "Preloader worker stopped", map[string]interface{}{
				"session_id": sessionID,
			})
			return
		default:
		}

		state.mu.Lock()
		size := len(state.queue)
		state.mu.Unlock()

		if size >= p.cfg.PreloadAhead {
			p.sleepOrStop(state, config.PreloaderIdleSleep)
			continue
		}

		question, err := p.generateQuestion(ctx, sessionID, state.userID)
		switch {
		case err != nil:
			p.logger.Error(ctx, "Preloader failed to generate question", err, map[string]interface{}{
				"session_id": sessionID,
			})
			p.sleepOrStop(state, config.PreloaderErrorBackoff)
		case question == nil:
			// Word pool exhausted for now; back off harder.
			p.sleepOrStop(state, config.PreloaderNoWordsBackoff)
		default:
			state.mu.Lock()
			if len(state.queue) >= p.cfg.QueueSize {
				// Bounded-deque semantics: overflow discards the oldest.
				state.queue = state.queue[1:]
			}
			state.queue = append(state.queue, question)
			queueSize := len(state.queue)
			state.mu.Unlock()

			p.logger.Debug(ctx, "Preloaded question", map[string]interface{}{
				"session_id": sessionID,
				"word":       question.WordText,
				"queue_size": queueSize,
			})
		}
	}
}

// sleepOrStop sleeps for d unless the stop signal fires first.
func (p *PreloaderService) sleepOrStop(state *sessionState, d time.Duration) {
	select {
	case <-state.stop:
	case <-time.After(d):
	}
}

// generateQuestion produces one ready-to-serve question, hitting the
// explanation cache before the external provider. Returns (nil, nil)
// when the learner's word pool is exhausted.
func (p *PreloaderService) generateQuestion(ctx context.Context, sessionID, userID int) (result0 *models.PreloadedQuestion, err error) {
	ctx, span := observability.TracePreloaderFunction(ctx, "generate_question",
		observability.AttributeSessionID(sessionID),
		observability.AttributeUserID(userID),
	)
	defer observability.FinishSpan(span, &err)

	excluded, err := p.excludedWordIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	word, err := p.wordService.GetNextWord(ctx, userID, excluded)
	if err != nil {
		return nil, err
	}
	if word == nil || word.Word == "" {
		span.SetAttributes(attribute.Bool("preloader.exhausted", true))
		return nil, nil
	}

	level := p.defaultLevel

	explanation := p.cache.Get(word.Word, level)
	if explanation == nil {
		explanation, err = p.explainer.Explain(ctx, word.Word, level)
		if err != nil {
			return nil, err
		}
		p.cache.Put(word.Word, level, explanation)
	} else {
		span.SetAttributes(attribute.Bool("explanation.cache_hit", true))
	}

	return BuildQuestion(word, level, explanation), nil
}

// excludedWordIDs collects the word ids a new question must avoid: every
// word already attempted in the session plus everything currently queued.
func (p *PreloaderService) excludedWordIDs(ctx context.Context, sessionID int) ([]int, error) {
	asked, err := p.sessionService.GetAskedWordIDs(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	state := p.stateFor(sessionID)
	if state == nil {
		return asked, nil
	}

	state.mu.Lock()
	for _, q := range state.queue {
		asked = append(asked, q.WordID)
	}
	state.mu.Unlock()

	return asked, nil
}

// BuildQuestion assembles the bilingual multiple-choice payload: the correct
// definition, up to three distractors, generic filler up to four choices,
// shuffled so the correct position is uniform. Shared with the synchronous
// fallback path in the HTTP layer.
func BuildQuestion(word *models.Word, level string, explanation *models.Explanation) *models.PreloadedQuestion {
	correct := models.BilingualPair{
		EN: explanation.DefinitionEN,
		ZH: explanation.DefinitionZH,
	}

	choices := []models.BilingualPair{correct}

	n := len(explanation.DistractorsEN)
	if len(explanation.DistractorsZH) < n {
		n = len(explanation.DistractorsZH)
	}
	if n > config.ChoicesPerQuestion-1 {
		n = config.ChoicesPerQuestion - 1
	}
	for i := 0; i < n; i++ {
		choices = append(choices, models.BilingualPair{
			EN: explanation.DistractorsEN[i],
			ZH: explanation.DistractorsZH[i],
		})
	}

	for len(choices) < config.ChoicesPerQuestion {
		choices = append(choices, genericFillerChoice)
	}

	rand.Shuffle(len(choices), func(i, j int) {
		choices[i], choices[j] = choices[j], choices[i]
	})

	sentence := ""
	if len(explanation.Examples) > 0 {
		sentence = explanation.Examples[0].EN
	}
	if sentence == "" {
		sentence = GenerateSentenceWithWord(word.Word, explanation.POS)
	}

	return &models.PreloadedQuestion{
		WordID:        word.ID,
		WordText:      word.Word,
		WordZH:        explanation.WordZH,
		Level:         level,
		Sentence:      sentence,
		Choices:       choices,
		CorrectChoice: correct,
		ExplanationEN: explanation.DefinitionEN,
		ExplanationZH: explanation.DefinitionZH,
		CreatedAt:     time.Now(),
	}
}
