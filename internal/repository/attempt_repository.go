package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PracticeAttempt is one archived practice submission.
type PracticeAttempt struct {
	ID            int64     `json:"id"`
	UserID        int       `json:"user_id"`
	SessionID     string    `json:"session_id"`
	Course        string    `json:"course"`
	Topic         string    `json:"topic"`
	TotalScore    float64   `json:"total_score"`
	TotalMaxScore float64   `json:"total_max_score"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AttemptPayload is the queue record produced on submission and drained
// into the archive by the worker.
type AttemptPayload struct {
	UserID        int       `json:"user_id"`
	SessionID     string    `json:"session_id"`
	Course        string    `json:"course"`
	Topic         string    `json:"topic"`
	TotalScore    float64   `json:"total_score"`
	TotalMaxScore float64   `json:"total_max_score"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AttemptRepository handles practice attempt archive access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetBySessionAndUser retrieves an archived attempt, or nil if the user
// never submitted this session.
func (r *AttemptRepository) GetBySessionAndUser(ctx context.Context, sessionID string, userID int) (*PracticeAttempt, error) {
	a := &PracticeAttempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, session_id, course, topic, total_score, total_max_score, submitted_at
		 FROM practice_attempts
		 WHERE session_id = $1 AND user_id = $2`, sessionID, userID,
	).Scan(&a.ID, &a.UserID, &a.SessionID, &a.Course, &a.Topic, &a.TotalScore, &a.TotalMaxScore, &a.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByUser returns a user's archived attempts, most recent first.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID, limit int) ([]PracticeAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, session_id, course, topic, total_score, total_max_score, submitted_at
		 FROM practice_attempts
		 WHERE user_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []PracticeAttempt
	for rows.Next() {
		var a PracticeAttempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.SessionID, &a.Course, &a.Topic, &a.TotalScore, &a.TotalMaxScore, &a.SubmittedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Insert archives a single attempt. Re-submissions of the same session
// are ignored; the first graded outcome is final.
func (r *AttemptRepository) Insert(ctx context.Context, p *AttemptPayload) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO practice_attempts (user_id, session_id, course, topic, total_score, total_max_score, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (session_id, user_id) DO NOTHING`,
		p.UserID, p.SessionID, p.Course, p.Topic, p.TotalScore, p.TotalMaxScore, p.SubmittedAt)
	return err
}

// BulkInsert archives a batch of attempts with one round trip using
// UNNEST arrays.
func (r *AttemptRepository) BulkInsert(ctx context.Context, batch []*AttemptPayload) error {
	n := len(batch)
	if n == 0 {
		return nil
	}

	userIDs := make([]int, 0, n)
	sessionIDs := make([]string, 0, n)
	courses := make([]string, 0, n)
	topics := make([]string, 0, n)
	scores := make([]float64, 0, n)
	maxScores := make([]float64, 0, n)
	submittedAts := make([]time.Time, 0, n)

	for _, p := range batch {
		userIDs = append(userIDs, p.UserID)
		sessionIDs = append(sessionIDs, p.SessionID)
		courses = append(courses, p.Course)
		topics = append(topics, p.Topic)
		scores = append(scores, p.TotalScore)
		maxScores = append(maxScores, p.TotalMaxScore)
		submittedAts = append(submittedAts, p.SubmittedAt)
	}

	query := `
		INSERT INTO practice_attempts
			(user_id, session_id, course, topic, total_score, total_max_score, submitted_at)
		SELECT * FROM UNNEST(
			$1::int[],
			$2::text[],
			$3::text[],
			$4::text[],
			$5::float8[],
			$6::float8[],
			$7::timestamptz[]
		)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query, userIDs, sessionIDs, courses, topics, scores, maxScores, submittedAts)
	return err
}
