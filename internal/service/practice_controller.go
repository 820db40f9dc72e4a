package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/client"
	"github.com/stemsi/tutor-gateway/internal/config"
	"github.com/stemsi/tutor-gateway/internal/events"
	"github.com/stemsi/tutor-gateway/internal/model"
	"github.com/stemsi/tutor-gateway/internal/repository"
)

// Practice flow errors surfaced to handlers.
var (
	ErrSessionNotFound   = errors.New("practice session not found")
	ErrUnknownQuestion   = errors.New("question does not belong to this session")
	ErrIncompleteAnswers = errors.New("every question must be answered before submitting")
	ErrAlreadyGraded     = errors.New("practice session is already graded")
)

// PracticeAPI is the practice-side slice of the upstream contract.
type PracticeAPI interface {
	Questions(ctx context.Context, sessionID string) ([]model.Question, error)
	Results(ctx context.Context, studentID int, sessionID string) ([]model.GradedResult, error)
	SubmitAnswers(ctx context.Context, sessionID string, studentID int, answers []client.SubmittedAnswer) ([]model.GradedResult, error)
}

// SubmissionNotifier receives the one-way "submitted" notification. The
// chat orchestrator implements it; nothing else of the practice state
// crosses back into the chat stream.
type SubmissionNotifier interface {
	PracticeSubmitted(ctx context.Context, userID int, course, topic string, result *model.SessionResult)
}

// AttemptArchive is the slice of the attempt repository the controller
// reads from.
type AttemptArchive interface {
	GetBySessionAndUser(ctx context.Context, sessionID string, userID int) (*repository.PracticeAttempt, error)
}

// PracticeController manages practice attempts end to end: entry check,
// question loading, answer collection, submission, and grading review.
// Each session's state is isolated; it is discarded when closed.
type PracticeController struct {
	cfg       *config.Config
	ai        PracticeAPI
	attempts  AttemptArchive
	rdb       *redis.Client
	notifier  SubmissionNotifier
	publisher *events.Publisher
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*model.PracticeSession
}

// NewPracticeController creates a new PracticeController. The notifier
// is set separately to break the construction cycle with the chat
// orchestrator.
func NewPracticeController(
	cfg *config.Config,
	ai PracticeAPI,
	attempts AttemptArchive,
	rdb *redis.Client,
	publisher *events.Publisher,
	log zerolog.Logger,
) *PracticeController {
	return &PracticeController{
		cfg:       cfg,
		ai:        ai,
		attempts:  attempts,
		rdb:       rdb,
		publisher: publisher,
		log:       log.With().Str("component", "practice_controller").Logger(),
		sessions:  make(map[string]*model.PracticeSession),
	}
}

// SetNotifier wires the one-way submitted notification target.
func (p *PracticeController) SetNotifier(n SubmissionNotifier) {
	p.notifier = n
}

func sessionKey(userID int, sessionID string) string {
	return strconv.Itoa(userID) + ":" + sessionID
}

// Start activates a directive. A prior submission for this session does
// not re-enter the quiz: the question set is still fetched (prompts are
// needed for the review) and a graded view is synthesized from the prior
// results instead.
func (p *PracticeController) Start(ctx context.Context, userID int, req model.StartPracticeRequest) (*model.PracticeSession, error) {
	sess := &model.PracticeSession{
		SessionID: req.SessionID,
		Course:    req.Course,
		Topic:     req.Topic,
		Answers:   make(map[int64]string),
		Status:    model.PracticeStatusCheckingSubmission,
		StartedAt: time.Now(),
	}

	prior, err := p.priorResults(ctx, userID, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("check prior submission: %w", err)
	}

	sess.Status = model.PracticeStatusLoadingQuestions
	questions, err := p.ai.Questions(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrSessionNotFound
	}
	sess.Questions = questions

	if len(prior) > 0 {
		sess.Result = p.buildResult(questions, prior)
		sess.Status = model.PracticeStatusGraded
		for _, r := range prior {
			sess.Answers[r.QuestionID] = r.StudentAnswer
		}
	} else {
		sess.Status = model.PracticeStatusInProgress
		p.restoreAnswers(ctx, userID, sess)
	}

	p.mu.Lock()
	p.sessions[sessionKey(userID, req.SessionID)] = sess
	out := sess.Clone()
	p.mu.Unlock()

	return out, nil
}

// priorResults checks the local attempt archive first, then the upstream
// results endpoint. An empty slice means no prior submission.
func (p *PracticeController) priorResults(ctx context.Context, userID int, sessionID string) ([]model.GradedResult, error) {
	attempt, err := p.attempts.GetBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		// Never archived locally; the upstream is authoritative.
		return p.ai.Results(ctx, userID, sessionID)
	}

	results, err := p.ai.Results(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		// Archive says submitted but the upstream lost the detail rows.
		// Treat as unsubmitted rather than showing an empty review.
		p.log.Warn().Str("session_id", sessionID).Int("user_id", userID).
			Msg("Archived attempt has no upstream results")
	}
	return results, nil
}

// Get returns a snapshot of the session state. Callers receive a copy
// so they can serialize it without holding the controller's lock.
func (p *PracticeController) Get(userID int, sessionID string) (*model.PracticeSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[sessionKey(userID, sessionID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// RecordAnswer stores one answer. Multiple choice stores the chosen
// option's literal text; navigation between questions is free, so any
// question may be answered or re-answered at any time before submission.
func (p *PracticeController) RecordAnswer(ctx context.Context, userID int, sessionID string, questionID int64, answer string) (*model.PracticeSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[sessionKey(userID, sessionID)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Status == model.PracticeStatusGraded {
		return nil, ErrAlreadyGraded
	}

	known := false
	for _, q := range sess.Questions {
		if q.ID == questionID {
			known = true
			break
		}
	}
	if !known {
		return nil, ErrUnknownQuestion
	}

	sess.Answers[questionID] = strings.TrimSpace(answer)
	p.cacheAnswer(ctx, userID, sessionID, questionID, sess.Answers[questionID])

	return sess.Clone(), nil
}

// Submit grades the session. It refuses to run before every question has
// a non-empty answer, and that check never issues an upstream call. On
// transport failure the collected answers are kept and the session moves
// to the error state, from which Submit may be retried.
func (p *PracticeController) Submit(ctx context.Context, userID int, sessionID string) (*model.PracticeSession, error) {
	p.mu.Lock()
	sess, ok := p.sessions[sessionKey(userID, sessionID)]
	if !ok {
		p.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if sess.Status == model.PracticeStatusGraded {
		p.mu.Unlock()
		return nil, ErrAlreadyGraded
	}
	if !sess.Submittable() {
		p.mu.Unlock()
		return nil, ErrIncompleteAnswers
	}

	answers := make([]client.SubmittedAnswer, 0, len(sess.Questions))
	for _, q := range sess.Questions {
		answers = append(answers, client.SubmittedAnswer{
			QuestionDBID: q.ID,
			Answer:       sess.Answers[q.ID],
			// Per-question timing is not tracked yet; the grading
			// endpoint requires the field.
			TimeSpent: 0,
		})
	}
	sess.Status = model.PracticeStatusSubmitting
	sess.LastError = ""
	p.mu.Unlock()

	results, err := p.ai.SubmitAnswers(ctx, sessionID, userID, answers)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		sess.Status = model.PracticeStatusError
		sess.LastError = "submission failed, your answers are kept; please retry"
		p.log.Warn().Err(err).Str("session_id", sessionID).Int("user_id", userID).Msg("Submission failed")
		return sess.Clone(), nil
	}

	sess.Result = p.buildResult(sess.Questions, results)
	sess.Status = model.PracticeStatusGraded

	p.queueArchive(ctx, userID, sess)
	p.clearCachedAnswers(ctx, userID, sessionID)
	p.publisher.Publish(ctx, userID, events.TypeGraded, sess.Result)

	if p.notifier != nil {
		p.notifier.PracticeSubmitted(ctx, userID, sess.Course, sess.Topic, sess.Result)
	}

	return sess.Clone(), nil
}

// Close discards the session state. Collected answers for an unsubmitted
// session stay cached in Redis so a re-opened session can restore them.
func (p *PracticeController) Close(userID int, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, sessionKey(userID, sessionID))
}

// buildResult classifies each graded answer and aggregates the totals.
func (p *PracticeController) buildResult(questions []model.Question, graded []model.GradedResult) *model.SessionResult {
	maxByID := make(map[int64]float64, len(questions))
	for _, q := range questions {
		maxByID[q.ID] = q.MaxScore
	}

	out := &model.SessionResult{Results: make([]model.GradedResult, 0, len(graded))}
	for _, r := range graded {
		if r.MaxScore == 0 {
			r.MaxScore = maxByID[r.QuestionID]
		}
		r.Label = Classify(r.Score, r.MaxScore, p.cfg.PartialCreditRatio)
		out.Results = append(out.Results, r)
		out.TotalScore += r.Score
		out.TotalMaxScore += r.MaxScore
	}
	return out
}

// Classify derives the three-level result label. The partial threshold is
// a ratio of the question's max score; the boundary value itself counts
// as partly correct.
func Classify(score, maxScore, partialRatio float64) model.ResultLabel {
	if maxScore <= 0 {
		return model.ResultIncorrect
	}
	if score >= maxScore {
		return model.ResultCorrect
	}
	if score/maxScore >= partialRatio {
		return model.ResultPartial
	}
	return model.ResultIncorrect
}

// CorrectOptionIndex locates the correct option of a multiple-choice
// question. The upstream is inconsistent about whether CorrectAnswer
// holds the option's letter ("B") or its literal text, so both forms are
// checked. Returns -1 when no option matches.
func CorrectOptionIndex(q model.Question) int {
	if q.Type != model.QuestionTypeMultipleChoice {
		return -1
	}
	want := strings.TrimSpace(q.CorrectAnswer)
	if want == "" {
		return -1
	}

	for i, opt := range q.Options {
		letter := string(rune('A' + i))
		if strings.EqualFold(want, letter) || strings.EqualFold(want, strings.TrimSpace(opt)) {
			return i
		}
	}
	return -1
}

// ─── Answer caching ─────────────────────────────────────────────────────

// cacheAnswer mirrors one answer into Redis so an interrupted session can
// be resumed. Best-effort.
func (p *PracticeController) cacheAnswer(ctx context.Context, userID int, sessionID string, questionID int64, answer string) {
	key := config.CacheKey.PracticeSessionKey(userID, sessionID)
	if err := p.rdb.HSet(ctx, key, strconv.FormatInt(questionID, 10), answer).Err(); err != nil {
		p.log.Warn().Err(err).Str("session_id", sessionID).Msg("Answer cache write failed")
		return
	}
	p.rdb.Expire(ctx, key, p.cfg.SnapshotTTL)
}

// restoreAnswers pulls previously cached answers into a fresh session.
func (p *PracticeController) restoreAnswers(ctx context.Context, userID int, sess *model.PracticeSession) {
	key := config.CacheKey.PracticeSessionKey(userID, sess.SessionID)
	cached, err := p.rdb.HGetAll(ctx, key).Result()
	if err != nil || len(cached) == 0 {
		return
	}

	for field, answer := range cached {
		qid, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		for _, q := range sess.Questions {
			if q.ID == qid {
				sess.Answers[qid] = answer
				break
			}
		}
	}
}

func (p *PracticeController) clearCachedAnswers(ctx context.Context, userID int, sessionID string) {
	key := config.CacheKey.PracticeSessionKey(userID, sessionID)
	if err := p.rdb.Del(ctx, key).Err(); err != nil {
		p.log.Warn().Err(err).Str("session_id", sessionID).Msg("Answer cache clear failed")
	}
}

// queueArchive pushes the graded attempt onto the archive queue; the
// archive worker drains it into PostgreSQL in batches.
func (p *PracticeController) queueArchive(ctx context.Context, userID int, sess *model.PracticeSession) {
	payload := repository.AttemptPayload{
		UserID:        userID,
		SessionID:     sess.SessionID,
		Course:        sess.Course,
		Topic:         sess.Topic,
		TotalScore:    sess.Result.TotalScore,
		TotalMaxScore: sess.Result.TotalMaxScore,
		SubmittedAt:   time.Now(),
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		p.log.Error().Err(err).Str("session_id", sess.SessionID).Msg("Archive payload encode failed")
		return
	}
	if err := p.rdb.RPush(ctx, config.WorkerKey.ArchiveAttemptsQueue, raw).Err(); err != nil {
		p.log.Warn().Err(err).Str("session_id", sess.SessionID).Msg("Archive enqueue failed")
	}
}
