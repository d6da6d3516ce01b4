// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// User represents a learner in the system
type User struct {
	ID        int       `json:"id" yaml:"id"`
	Username  string    `json:"username" yaml:"username"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Word represents a vocabulary word
type Word struct {
	ID              int            `json:"id" yaml:"id"`
	Word            string         `json:"word" yaml:"word"`
	Definition      string         `json:"definition" yaml:"definition"`
	DifficultyLevel int            `json:"difficulty_level" yaml:"difficulty_level"`
	Category        sql.NullString `json:"category" yaml:"category"`
	CreatedAt       time.Time      `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Word to render null columns properly
func (w Word) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID              int       `json:"id"`
		Word            string    `json:"word"`
		Definition      string    `json:"definition"`
		DifficultyLevel int       `json:"difficulty_level"`
		Category        *string   `json:"category"`
		CreatedAt       time.Time `json:"created_at"`
	}{
		ID:              w.ID,
		Word:            w.Word,
		Definition:      w.Definition,
		DifficultyLevel: w.DifficultyLevel,
		Category:        nullStringToPointer(w.Category),
		CreatedAt:       w.CreatedAt,
	})
}

// UserWord tracks a learner's spaced-repetition progress for one word.
// A word sits in the wrongbook until it has been answered correctly
// enough times in review.
type UserWord struct {
	ID           int          `json:"id" yaml:"id"`
	UserID       int          `json:"user_id" yaml:"user_id"`
	WordID       int          `json:"word_id" yaml:"word_id"`
	CorrectCount int          `json:"correct_count" yaml:"correct_count"`
	LastReviewed sql.NullTime `json:"last_reviewed" yaml:"last_reviewed"`
	NextReview   sql.NullTime `json:"next_review" yaml:"next_review"`
	SRSInterval  int          `json:"srs_interval" yaml:"srs_interval"`
	InWrongbook  bool         `json:"in_wrongbook" yaml:"in_wrongbook"`
}

// MarshalJSON customizes JSON marshaling for UserWord
func (uw UserWord) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID           int        `json:"id"`
		UserID       int        `json:"user_id"`
		WordID       int        `json:"word_id"`
		CorrectCount int        `json:"correct_count"`
		LastReviewed *time.Time `json:"last_reviewed"`
		NextReview   *time.Time `json:"next_review"`
		SRSInterval  int        `json:"srs_interval"`
		InWrongbook  bool       `json:"in_wrongbook"`
	}{
		ID:           uw.ID,
		UserID:       uw.UserID,
		WordID:       uw.WordID,
		CorrectCount: uw.CorrectCount,
		LastReviewed: nullTimeToPointer(uw.LastReviewed),
		NextReview:   nullTimeToPointer(uw.NextReview),
		SRSInterval:  uw.SRSInterval,
		InWrongbook:  uw.InWrongbook,
	})
}

// Session represents one quiz sitting
type Session struct {
	ID             int       `json:"id" yaml:"id"`
	UserID         int       `json:"user_id" yaml:"user_id"`
	SessionDate    time.Time `json:"session_date" yaml:"session_date"`
	TotalQuestions int       `json:"total_questions" yaml:"total_questions"`
	CorrectAnswers int       `json:"correct_answers" yaml:"correct_answers"`
	Score          int       `json:"score" yaml:"score"`
	Completed      bool      `json:"completed" yaml:"completed"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// QuestionAttempt records one asked question and the learner's answer
type QuestionAttempt struct {
	ID            int            `json:"id" yaml:"id"`
	SessionID     int            `json:"session_id" yaml:"session_id"`
	WordID        int            `json:"word_id" yaml:"word_id"`
	QuestionText  string         `json:"question_text" yaml:"question_text"`
	CorrectAnswer string         `json:"correct_answer" yaml:"correct_answer"`
	UserAnswer    sql.NullString `json:"user_answer" yaml:"user_answer"`
	IsCorrect     sql.NullBool   `json:"is_correct" yaml:"is_correct"`
	Explanation   sql.NullString `json:"explanation" yaml:"explanation"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
}

// BilingualPair is one example sentence in English and Chinese
type BilingualPair struct {
	EN string `json:"en" yaml:"en"`
	ZH string `json:"zh" yaml:"zh"`
}

// Explanation is the enrichment payload for one word as produced by the
// external explainer (or the mock/fallback path).
type Explanation struct {
	Word          string          `json:"word" yaml:"word"`
	WordZH        string          `json:"word_zh" yaml:"word_zh"`
	POS           []string        `json:"pos" yaml:"pos"`
	DefinitionEN  string          `json:"definition_en" yaml:"definition_en"`
	DefinitionZH  string          `json:"definition_zh" yaml:"definition_zh"`
	DistractorsEN []string        `json:"distractors_en" yaml:"distractors_en"`
	DistractorsZH []string        `json:"distractors_zh" yaml:"distractors_zh"`
	Examples      []BilingualPair `json:"examples" yaml:"examples"`
}

// PreloadedQuestion is a fully prepared multiple-choice question sitting in
// a session's preload queue. CreatedAt drives TTL eviction.
type PreloadedQuestion struct {
	WordID        int             `json:"word_id"`
	WordText      string          `json:"word"`
	WordZH        string          `json:"word_zh"`
	Level         string          `json:"level"`
	Sentence      string          `json:"sentence"`
	Choices       []BilingualPair `json:"choices"`
	CorrectChoice BilingualPair   `json:"correct_choice"`
	ExplanationEN string          `json:"explanation_en"`
	ExplanationZH string          `json:"explanation_zh"`
	CreatedAt     time.Time       `json:"-"`
}

// QueueStatus is a point-in-time snapshot of one session's preload queue
type QueueStatus struct {
	QueueSize   int  `json:"queue_size"`
	WorkerAlive bool `json:"worker_alive"`
	Capacity    int  `json:"capacity"`
}

// UserStats summarizes a learner's progress for the stats endpoint
type UserStats struct {
	TotalScore     int `json:"total_score"`
	DailyScore     int `json:"daily_score"`
	WrongbookCount int `json:"wrongbook_count"`
	SessionsPlayed int `json:"sessions_played"`
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
