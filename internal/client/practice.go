package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/stemsi/tutor-gateway/internal/model"
)

const (
	generatePracticePath = "/api/ai/generate-practice/"
	questionsPath        = "/api/ai/questions/session/"
	resultsPath          = "/api/ai/results"
	submitAnswersPath    = "/api/ai/submit-answers/"
)

// GeneratePracticeRequest describes one practice-set generation order.
type GeneratePracticeRequest struct {
	Course       string `json:"course"`
	Topic        string `json:"topic"`
	UserID       int    `json:"user_id"`
	NumQuestions int    `json:"num_questions"`
	Difficulty   string `json:"difficulty"`
}

type generatePracticeResponse struct {
	Success        bool   `json:"success"`
	Course         string `json:"course"`
	Topic          string `json:"topic"`
	SessionID      string `json:"session_id"`
	TotalQuestions int    `json:"total_questions"`
	Error          string `json:"error,omitempty"`
}

type questionsResponse struct {
	Success   bool             `json:"success"`
	Questions []model.Question `json:"questions"`
	Error     string           `json:"error,omitempty"`
}

type resultsResponse struct {
	Success bool                 `json:"success"`
	Results []model.GradedResult `json:"results"`
	Error   string               `json:"error,omitempty"`
}

// SubmittedAnswer is one answer record in a grading submission.
type SubmittedAnswer struct {
	QuestionDBID int64  `json:"question_db_id"`
	Answer       string `json:"answer"`
	TimeSpent    int    `json:"time_spent"`
}

type submitAnswersRequest struct {
	SessionID string            `json:"session_id"`
	StudentID int               `json:"student_id"`
	Answers   []SubmittedAnswer `json:"answers"`
}

type submitAnswersResponse struct {
	Success bool                 `json:"success"`
	Results []model.GradedResult `json:"results"`
	Error   string               `json:"error,omitempty"`
}

// GeneratePractice orders a new practice set and returns its directive.
func (c *AIClient) GeneratePractice(ctx context.Context, req GeneratePracticeRequest) (*model.PracticeDirective, error) {
	var resp generatePracticeResponse
	if err := c.post(ctx, generatePracticePath, nil, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: 200, Message: resp.Error}
	}

	return &model.PracticeDirective{
		Course:         resp.Course,
		Topic:          resp.Topic,
		SessionID:      resp.SessionID,
		TotalQuestions: resp.TotalQuestions,
	}, nil
}

// Questions fetches the full question set for a practice session.
func (c *AIClient) Questions(ctx context.Context, sessionID string) ([]model.Question, error) {
	var resp questionsResponse
	if err := c.get(ctx, questionsPath+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: 200, Message: resp.Error}
	}
	return resp.Questions, nil
}

// Results fetches prior grading results for a student's session. An empty
// slice means the session was never submitted.
func (c *AIClient) Results(ctx context.Context, studentID int, sessionID string) ([]model.GradedResult, error) {
	query := url.Values{
		"student_id": {strconv.Itoa(studentID)},
		"session_id": {sessionID},
	}

	var resp resultsResponse
	if err := c.get(ctx, resultsPath, query, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: 200, Message: resp.Error}
	}
	return resp.Results, nil
}

// SubmitAnswers posts a complete answer set for grading and returns the
// per-question results.
func (c *AIClient) SubmitAnswers(ctx context.Context, sessionID string, studentID int, answers []SubmittedAnswer) ([]model.GradedResult, error) {
	body := submitAnswersRequest{
		SessionID: sessionID,
		StudentID: studentID,
		Answers:   answers,
	}

	var resp submitAnswersResponse
	if err := c.post(ctx, submitAnswersPath, nil, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &APIError{StatusCode: 200, Message: resp.Error}
	}
	return resp.Results, nil
}
