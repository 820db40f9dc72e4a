package model

// PracticeDirective is a structured instruction embedded in an AI message
// that can launch a practice session. Produced once per AI message that
// announces a ready practice set; consumed when the user activates it.
type PracticeDirective struct {
	Course         string `json:"course"`
	Topic          string `json:"topic"`
	SessionID      string `json:"session_id"`
	TotalQuestions int    `json:"total_questions,omitempty"`
}

// StartPracticeRequest is the payload for activating a directive.
type StartPracticeRequest struct {
	Course    string `json:"course" binding:"max=200"`
	Topic     string `json:"topic" binding:"max=200"`
	SessionID string `json:"session_id" binding:"required,max=100"`
}
