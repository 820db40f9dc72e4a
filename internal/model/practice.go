package model

import "time"

// PracticeStatus enumerates practice session states.
type PracticeStatus string

const (
	PracticeStatusCheckingSubmission PracticeStatus = "checking_submission"
	PracticeStatusLoadingQuestions   PracticeStatus = "loading_questions"
	PracticeStatusInProgress         PracticeStatus = "in_progress"
	PracticeStatusSubmitting         PracticeStatus = "submitting"
	PracticeStatusGraded             PracticeStatus = "graded"
	PracticeStatusError              PracticeStatus = "error"
)

// PracticeSession is one bounded quiz attempt. Answers map question ID to
// the literal answer text. A session is submittable only when every
// question has a non-empty answer.
type PracticeSession struct {
	SessionID string           `json:"session_id"`
	Course    string           `json:"course"`
	Topic     string           `json:"topic"`
	Questions []Question       `json:"questions"`
	Answers   map[int64]string `json:"answers"`
	Status    PracticeStatus   `json:"status"`
	StartedAt time.Time        `json:"started_at"`
	Result    *SessionResult   `json:"result,omitempty"`
	// LastError holds a retryable transport failure message, set only in
	// the error state.
	LastError string `json:"last_error,omitempty"`
}

// Clone returns a deep copy that is safe to serialize after the
// controller releases its lock. Answers, Questions and the graded
// result get their own backing storage.
func (p *PracticeSession) Clone() *PracticeSession {
	if p == nil {
		return nil
	}
	out := *p
	out.Questions = make([]Question, len(p.Questions))
	copy(out.Questions, p.Questions)
	out.Answers = make(map[int64]string, len(p.Answers))
	for id, answer := range p.Answers {
		out.Answers[id] = answer
	}
	if p.Result != nil {
		result := *p.Result
		result.Results = make([]GradedResult, len(p.Result.Results))
		copy(result.Results, p.Result.Results)
		out.Result = &result
	}
	return &out
}

// AnsweredCount returns how many questions carry a non-empty answer.
func (p *PracticeSession) AnsweredCount() int {
	n := 0
	for _, q := range p.Questions {
		if p.Answers[q.ID] != "" {
			n++
		}
	}
	return n
}

// Submittable reports whether every question has a non-empty answer.
func (p *PracticeSession) Submittable() bool {
	return len(p.Questions) > 0 && p.AnsweredCount() == len(p.Questions)
}
