package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/client"
	"github.com/stemsi/tutor-gateway/internal/config"
	"github.com/stemsi/tutor-gateway/internal/directive"
	"github.com/stemsi/tutor-gateway/internal/events"
	"github.com/stemsi/tutor-gateway/internal/model"
	"github.com/stemsi/tutor-gateway/internal/store"
)

// ChatState enumerates the chat session lifecycle.
type ChatState string

const (
	ChatStateUninitialized  ChatState = "uninitialized"
	ChatStateCheckingHealth ChatState = "checking_health"
	ChatStateReady          ChatState = "ready"
	ChatStateDegraded       ChatState = "degraded"
	ChatStateGenerating     ChatState = "generating"
)

// Chat flow errors surfaced to handlers.
var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrSendInFlight       = errors.New("a send is already in flight")
	ErrServiceUnavailable = errors.New("tutoring service is unavailable")
	ErrNotBootstrapped    = errors.New("chat session is not bootstrapped")
)

const (
	// welcomePrompt is the synthetic request that elicits the greeting on
	// a first visit. The prompt itself is never shown to the user.
	welcomePrompt = "Please greet me and briefly explain how you can help me study."

	// welcomeKickoffDelay is the deferred re-check before the synthetic
	// welcome send. If a real message lands first, the welcome is skipped.
	welcomeKickoffDelay = 300 * time.Millisecond

	sendApology       = "Sorry, I couldn't process that message right now. Please try again in a moment."
	generationApology = "Sorry, I couldn't prepare that practice set. Please ask me to generate it again."
)

// genTriggerRe matches the upstream's fixed generation announcement, e.g.
// "Generating 5 medium practice questions on Binary Trees for CS101."
// This text-pattern path is best-effort: replies that carry structured
// practice metadata never reach it.
var genTriggerRe = regexp.MustCompile(`(?i)generating\s+(\d+)\s+(easy|medium|hard)\s+(?:practice\s+)?questions?\s+on\s+(.+?)\s+for\s+([A-Za-z0-9][A-Za-z0-9 _-]*)`)

// TutorAPI is the chat-side slice of the upstream contract.
type TutorAPI interface {
	SendMessage(ctx context.Context, userID int, message string) (*client.Exchange, error)
	History(ctx context.Context, userID, limit int) ([]model.ChatMessage, error)
	Health(ctx context.Context) bool
	GeneratePractice(ctx context.Context, req client.GeneratePracticeRequest) (*model.PracticeDirective, error)
}

// RenderedMessage is a chat message plus its parsed segments. Segments
// are attached to AI messages only; user text is rendered verbatim.
type RenderedMessage struct {
	model.ChatMessage
	Segments []directive.Segment `json:"segments,omitempty"`
}

// ChatView is the chat surface state returned to the front-end.
type ChatView struct {
	State            ChatState         `json:"state"`
	Mode             model.ChatMode    `json:"mode"`
	Messages         []RenderedMessage `json:"messages"`
	HasLoadedHistory bool              `json:"has_loaded_history"`
	ShowLoadHistory  bool              `json:"show_load_history"`
	SendInFlight     bool              `json:"send_in_flight"`
}

// chatSession is one user's live chat state. Its mutex serializes every
// transition, so each handler invocation performs exactly one transition.
type chatSession struct {
	mu               sync.Mutex
	state            ChatState
	mode             model.ChatMode
	store            *store.MessageStore
	hasLoadedHistory bool
	showLoadHistory  bool
	sendInFlight     bool
}

// ChatOrchestrator manages chat session lifecycles: health-gated
// bootstrap, the send/receive cycle, history loading, and the
// practice-generation handoff.
type ChatOrchestrator struct {
	cfg       *config.Config
	ai        TutorAPI
	snapshots *SnapshotService
	publisher *events.Publisher
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[int]*chatSession
}

// NewChatOrchestrator creates a new ChatOrchestrator.
func NewChatOrchestrator(
	cfg *config.Config,
	ai TutorAPI,
	snapshots *SnapshotService,
	publisher *events.Publisher,
	log zerolog.Logger,
) *ChatOrchestrator {
	return &ChatOrchestrator{
		cfg:       cfg,
		ai:        ai,
		snapshots: snapshots,
		publisher: publisher,
		log:       log.With().Str("component", "chat_orchestrator").Logger(),
		sessions:  make(map[int]*chatSession),
	}
}

// session returns the user's chat session, creating it on first use.
func (o *ChatOrchestrator) session(userID int) *chatSession {
	o.mu.Lock()
	defer o.mu.Unlock()

	sess, ok := o.sessions[userID]
	if !ok {
		sess = &chatSession{
			state: ChatStateUninitialized,
			mode:  model.ChatModeGeneral,
			store: store.NewMessageStore(),
		}
		o.sessions[userID] = sess
	}
	return sess
}

// Bootstrap runs the chat entry protocol for a user's login session:
// health check, first-visit vs returning-visit branch, snapshot restore
// with fresh-greeting fallback. Re-invoking on an already-ready session
// is a no-op returning the current view.
func (o *ChatOrchestrator) Bootstrap(ctx context.Context, userID int, loginUnix int64) *ChatView {
	sess := o.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == ChatStateReady || sess.state == ChatStateGenerating {
		return o.viewLocked(sess)
	}

	sess.state = ChatStateCheckingHealth
	if !o.ai.Health(ctx) {
		// Input stays disabled and no welcome is sent.
		sess.state = ChatStateDegraded
		return o.viewLocked(sess)
	}

	if o.snapshots.HasVisited(ctx, userID, loginUnix) {
		if o.restoreLocked(ctx, sess, userID) {
			sess.state = ChatStateReady
			return o.viewLocked(sess)
		}
		o.log.Info().Int("user_id", userID).Msg("Snapshot restore failed, falling back to greeting flow")
	}

	// First-visit path: start clean and elicit the greeting.
	sess.store.Clear()
	sess.hasLoadedHistory = false
	sess.showLoadHistory = true
	o.snapshots.MarkVisited(ctx, userID, loginUnix)
	sess.state = ChatStateReady

	go o.sendWelcome(userID)

	return o.viewLocked(sess)
}

// restoreLocked attempts to restore persisted state. Returns false when
// no snapshot exists or it cannot be decoded.
func (o *ChatOrchestrator) restoreLocked(ctx context.Context, sess *chatSession, userID int) bool {
	snap, err := o.snapshots.Load(ctx, userID)
	if err != nil || snap == nil {
		return false
	}

	sess.store.Replace(snap.Messages)
	sess.hasLoadedHistory = snap.HasLoadedHistory
	sess.showLoadHistory = snap.ShowLoadHistory
	sess.mode = deriveModeFromMessages(snap.Messages)
	return true
}

// sendWelcome issues the synthetic greeting request after a short
// deferred check: if a message arrived in the meantime, or a send is in
// flight, the welcome is skipped to avoid a double greeting.
func (o *ChatOrchestrator) sendWelcome(userID int) {
	time.Sleep(welcomeKickoffDelay)

	sess := o.session(userID)
	sess.mu.Lock()
	if sess.store.Len() > 0 || sess.sendInFlight || sess.state != ChatStateReady {
		sess.mu.Unlock()
		return
	}
	sess.sendInFlight = true
	sess.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.UpstreamTimeout)
	defer cancel()

	ex, err := o.ai.SendMessage(ctx, userID, welcomePrompt)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.sendInFlight = false

	if err != nil {
		// The greeting is best-effort; the user can simply start typing.
		o.log.Warn().Err(err).Int("user_id", userID).Msg("Welcome send failed")
		return
	}

	// Only the AI greeting is shown; the synthetic prompt stays hidden.
	o.absorbAIReplyLocked(ctx, sess, userID, ex.AIResponse)
}

// Send runs the message exchange protocol. The user's message is never
// dropped: on upstream failure it stays in the list and a fixed apology
// is appended in the AI's place.
func (o *ChatOrchestrator) Send(ctx context.Context, userID int, text string) (*ChatView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess := o.session(userID)

	sess.mu.Lock()
	switch {
	case sess.state == ChatStateUninitialized || sess.state == ChatStateCheckingHealth:
		sess.mu.Unlock()
		return nil, ErrNotBootstrapped
	case sess.state == ChatStateDegraded:
		sess.mu.Unlock()
		return nil, ErrServiceUnavailable
	case sess.sendInFlight || sess.state == ChatStateGenerating:
		sess.mu.Unlock()
		return nil, ErrSendInFlight
	}

	tempID := sess.store.AppendOptimistic(model.ChatMessage{
		Role:      model.RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	})
	sess.sendInFlight = true
	sess.mu.Unlock()

	ex, err := o.ai.SendMessage(ctx, userID, text)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.sendInFlight = false

	if err != nil {
		o.log.Warn().Err(err).Int("user_id", userID).Msg("Send failed, substituting apology")
		sess.store.AppendOptimistic(model.ChatMessage{
			Role:      model.RoleAI,
			Content:   sendApology,
			Timestamp: time.Now(),
		})
		o.saveSnapshotLocked(ctx, userID, sess)
		o.publisher.Publish(ctx, userID, events.TypeMessageAppended, nil)
		return o.viewLocked(sess), nil
	}

	// Replacement is keyed by the temporary id, never by position.
	sess.store.Reconcile(tempID, ex.UserMessage)
	o.absorbAIReplyLocked(ctx, sess, userID, ex.AIResponse)

	return o.viewLocked(sess), nil
}

// absorbAIReplyLocked folds a confirmed AI reply into session state:
// directive normalization, intent badge, snapshot, events, and the
// practice-generation trigger. Callers hold the session lock.
func (o *ChatOrchestrator) absorbAIReplyLocked(ctx context.Context, sess *chatSession, userID int, reply model.ChatMessage) {
	normalizeDirective(&reply)
	sess.store.Append(reply)
	sess.mode = deriveMode(reply.Metadata.Intent)

	o.saveSnapshotLocked(ctx, userID, sess)
	o.publisher.Publish(ctx, userID, events.TypeMessageAppended, nil)

	if reply.Metadata.PracticeInfo != nil {
		o.publisher.Publish(ctx, userID, events.TypePracticeReady, reply.Metadata.PracticeInfo)
		return
	}

	if order, ok := parseGenerationTrigger(reply.Content); ok {
		sess.state = ChatStateGenerating
		o.publisher.Publish(ctx, userID, events.TypeGenerating, map[string]bool{"active": true})
		go o.runGeneration(userID, order)
	}
}

// generationOrder holds the parameters extracted from a generation
// announcement.
type generationOrder struct {
	NumQuestions int
	Difficulty   string
	Topic        string
	Course       string
}

// parseGenerationTrigger extracts (count, difficulty, topic, course) from
// the upstream's fixed announcement text.
func parseGenerationTrigger(content string) (generationOrder, bool) {
	m := genTriggerRe.FindStringSubmatch(content)
	if m == nil {
		return generationOrder{}, false
	}

	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return generationOrder{}, false
	}

	return generationOrder{
		NumQuestions: n,
		Difficulty:   strings.ToLower(m[2]),
		Topic:        strings.TrimSpace(m[3]),
		Course:       strings.TrimSpace(m[4]),
	}, true
}

// runGeneration calls the practice-generation endpoint and appends the
// resulting directive message, or an apology on failure.
func (o *ChatOrchestrator) runGeneration(userID int, order generationOrder) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*o.cfg.UpstreamTimeout)
	defer cancel()

	dir, err := o.ai.GeneratePractice(ctx, client.GeneratePracticeRequest{
		Course:       order.Course,
		Topic:        order.Topic,
		UserID:       userID,
		NumQuestions: order.NumQuestions,
		Difficulty:   order.Difficulty,
	})

	sess := o.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state == ChatStateGenerating {
		sess.state = ChatStateReady
	}
	o.publisher.Publish(ctx, userID, events.TypeGenerating, map[string]bool{"active": false})

	if err != nil {
		o.log.Warn().Err(err).Int("user_id", userID).Msg("Practice generation failed")
		sess.store.AppendOptimistic(model.ChatMessage{
			Role:      model.RoleAI,
			Content:   generationApology,
			Timestamp: time.Now(),
		})
		o.saveSnapshotLocked(ctx, userID, sess)
		o.publisher.Publish(ctx, userID, events.TypeMessageAppended, nil)
		return
	}

	// The most recent history entry carries the authoritative directive
	// message; fall back to synthesizing one from the generate response.
	announcement := o.fetchDirectiveMessage(ctx, userID, dir)
	sess.store.MergeHistory([]model.ChatMessage{announcement})

	o.saveSnapshotLocked(ctx, userID, sess)
	o.publisher.Publish(ctx, userID, events.TypeMessageAppended, nil)
	o.publisher.Publish(ctx, userID, events.TypePracticeReady, dir)
}

// fetchDirectiveMessage pulls the single most recent history entry and
// ensures it carries the directive. If the fetch fails, a local message
// is synthesized from the generate response instead.
func (o *ChatOrchestrator) fetchDirectiveMessage(ctx context.Context, userID int, dir *model.PracticeDirective) model.ChatMessage {
	msgs, err := o.ai.History(ctx, userID, 1)
	if err == nil && len(msgs) > 0 {
		msg := msgs[len(msgs)-1]
		normalizeDirective(&msg)
		if msg.Metadata.PracticeInfo == nil {
			msg.Metadata.PracticeInfo = dir
		}
		return msg
	}

	if err != nil {
		o.log.Warn().Err(err).Int("user_id", userID).Msg("Directive history fetch failed, synthesizing locally")
	}
	return model.ChatMessage{
		ID:        -time.Now().UnixNano(), // Local entry; replaced on next history load.
		Role:      model.RoleAI,
		Content:   "Your practice set on " + dir.Topic + " is ready.",
		Timestamp: time.Now(),
		Metadata:  model.MessageMetadata{PracticeInfo: dir},
	}
}

// LoadHistory fetches past messages and merges them into the session.
// It only runs on explicit user action; the merge is idempotent.
func (o *ChatOrchestrator) LoadHistory(ctx context.Context, userID int) (*ChatView, error) {
	sess := o.session(userID)

	sess.mu.Lock()
	if sess.state == ChatStateUninitialized || sess.state == ChatStateCheckingHealth {
		sess.mu.Unlock()
		return nil, ErrNotBootstrapped
	}
	sess.mu.Unlock()

	history, err := o.ai.History(ctx, userID, o.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	for i := range history {
		normalizeDirective(&history[i])
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.store.MergeHistory(history)
	sess.hasLoadedHistory = true
	sess.showLoadHistory = false
	o.saveSnapshotLocked(ctx, userID, sess)

	return o.viewLocked(sess), nil
}

// State returns the current chat view without side effects.
func (o *ChatOrchestrator) State(userID int) *ChatView {
	sess := o.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return o.viewLocked(sess)
}

// PracticeSubmitted is the one-way notification from the practice
// controller: the graded outcome lands in the chat stream as a new AI
// message. Practice session state itself is never merged back.
func (o *ChatOrchestrator) PracticeSubmitted(ctx context.Context, userID int, course, topic string, result *model.SessionResult) {
	sess := o.session(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	content := "You completed the " + topic + " practice with " +
		strconv.FormatFloat(result.TotalScore, 'f', -1, 64) + " out of " +
		strconv.FormatFloat(result.TotalMaxScore, 'f', -1, 64) + " points."
	if course != "" {
		content += " (" + course + ")"
	}

	sess.store.AppendOptimistic(model.ChatMessage{
		Role:      model.RoleAI,
		Content:   content,
		Timestamp: time.Now(),
	})
	o.saveSnapshotLocked(ctx, userID, sess)
	o.publisher.Publish(ctx, userID, events.TypeMessageAppended, nil)
}

// saveSnapshotLocked persists the session slice the front-end needs back
// after navigation. Callers hold the session lock.
func (o *ChatOrchestrator) saveSnapshotLocked(ctx context.Context, userID int, sess *chatSession) {
	o.snapshots.Save(ctx, userID, &ChatSnapshot{
		Messages:         sess.store.Messages(),
		HasLoadedHistory: sess.hasLoadedHistory,
		ShowLoadHistory:  sess.showLoadHistory,
	})
}

func (o *ChatOrchestrator) viewLocked(sess *chatSession) *ChatView {
	msgs := sess.store.Messages()
	rendered := make([]RenderedMessage, len(msgs))
	for i, m := range msgs {
		rendered[i] = RenderedMessage{ChatMessage: m}
		if m.Role == model.RoleAI {
			rendered[i].Segments = directive.Parse(m.Content)
		}
	}

	return &ChatView{
		State:            sess.state,
		Mode:             sess.mode,
		Messages:         rendered,
		HasLoadedHistory: sess.hasLoadedHistory,
		ShowLoadHistory:  sess.showLoadHistory,
		SendInFlight:     sess.sendInFlight,
	}
}

// normalizeDirective lifts a text-embedded directive into structured
// metadata so downstream consumers never re-parse message content.
func normalizeDirective(msg *model.ChatMessage) {
	if msg.Role != model.RoleAI || msg.Metadata.PracticeInfo != nil {
		return
	}
	for _, seg := range directive.Parse(msg.Content) {
		if seg.Type == directive.SegmentButton && seg.SessionID != "" {
			msg.Metadata.PracticeInfo = &model.PracticeDirective{
				Course:    seg.Course,
				Topic:     seg.Topic,
				SessionID: seg.SessionID,
			}
			return
		}
	}
}

// deriveMode maps an upstream intent annotation to a display category.
// Unknown and empty intents fall through to general chat.
func deriveMode(intent string) model.ChatMode {
	normalized := strings.ToLower(strings.TrimSpace(intent))
	switch {
	case strings.Contains(normalized, "practice"):
		return model.ChatModePracticeSetup
	case strings.Contains(normalized, "plan"):
		return model.ChatModeStudyPlan
	default:
		return model.ChatModeGeneral
	}
}

// deriveModeFromMessages recovers the badge from the latest AI message in
// a restored snapshot.
func deriveModeFromMessages(msgs []model.ChatMessage) model.ChatMode {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAI {
			return deriveMode(msgs[i].Metadata.Intent)
		}
	}
	return model.ChatModeGeneral
}
