package model

// ResultLabel is the three-level classification of one graded answer.
type ResultLabel string

const (
	ResultCorrect   ResultLabel = "correct"
	ResultPartial   ResultLabel = "partly_correct"
	ResultIncorrect ResultLabel = "incorrect"
)

// GradedResult is the per-question outcome returned by the grading
// endpoint. Immutable once received.
type GradedResult struct {
	QuestionID    int64       `json:"question_id"`
	Score         float64     `json:"score"`
	MaxScore      float64     `json:"max_score"`
	StudentAnswer string      `json:"student_answer"`
	Explanation   string      `json:"explanation,omitempty"`
	Label         ResultLabel `json:"label"`
}

// SessionResult aggregates a session's graded results. A session
// transitions to graded exactly once; the aggregate never changes after.
type SessionResult struct {
	Results       []GradedResult `json:"results"`
	TotalScore    float64        `json:"total_score"`
	TotalMaxScore float64        `json:"total_max_score"`
}
