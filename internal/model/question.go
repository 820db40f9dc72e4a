package model

// QuestionType distinguishes the two supported question forms.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// Question is a single practice question as served by the upstream.
// CorrectAnswer and SampleAnswer are reference data used only when
// rendering results; they are never exposed before grading.
type Question struct {
	ID            int64        `json:"id"`
	Type          QuestionType `json:"type"`
	Prompt        string       `json:"prompt"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	SampleAnswer  string       `json:"sample_answer,omitempty"`
	MaxScore      float64      `json:"max_score"`
}

// RecordAnswerRequest is the payload for storing one answer. Answers hold
// the chosen option's literal text for multiple choice, free text
// otherwise.
type RecordAnswerRequest struct {
	QuestionID int64  `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required,max=8000"`
}
