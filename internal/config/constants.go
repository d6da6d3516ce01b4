package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout  = 60 * time.Second
	ExplainerTimeout    = 90 * time.Second
	ServerReadTimeout   = 30 * time.Second
	GracefulStopTimeout = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session cookie lifetime
	SessionMaxAge = 7 * 24 * time.Hour
)

// Preloader constants. These are the defaults; each is overridable through the
// preloader section of config.yaml.
const (
	// DefaultPreloadQueueSize bounds each session's question queue.
	DefaultPreloadQueueSize = 5
	// DefaultPreloadAhead is the queue fullness the worker tries to maintain.
	DefaultPreloadAhead = 3
	// DefaultQuestionTTL is how long a queued question stays servable.
	DefaultQuestionTTL = 5 * time.Minute
	// DefaultPreloaderStopTimeout bounds how long StopSession waits for the
	// worker goroutine to observe its stop signal.
	DefaultPreloaderStopTimeout = 5 * time.Second

	// Worker loop sleeps
	PreloaderIdleSleep      = 500 * time.Millisecond
	PreloaderErrorBackoff   = 1 * time.Second
	PreloaderNoWordsBackoff = 2 * time.Second
)

// Explanation cache constants
const (
	// DefaultExplanationCacheSize bounds the process-wide explanation cache.
	DefaultExplanationCacheSize = 1000
)

// Quiz constants
const (
	// DefaultMaxQuestionsPerSession caps how many questions a session serves.
	DefaultMaxQuestionsPerSession = 50
	// ChoicesPerQuestion is the fixed number of answer choices.
	ChoicesPerQuestion = 4
	// WrongbookExitThreshold is the number of correct answers after which a
	// word leaves the wrongbook.
	WrongbookExitThreshold = 3
	// DefaultWordLevel is assumed when a word row carries no level.
	DefaultWordLevel = "k12"
)

// SRSIntervalsDays is the spaced-repetition interval ladder, in days. A correct
// answer advances one rung (capped at the last), a wrong answer resets to the
// first.
var SRSIntervalsDays = []int{0, 1, 3, 7, 14}

// Session cookie configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "lexiboost-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:;"
)
