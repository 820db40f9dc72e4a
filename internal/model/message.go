package model

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// ChatMessage is one entry in a user's tutoring conversation.
//
// IDs are server-assigned positive integers once confirmed by the
// upstream. Messages appended optimistically before confirmation carry a
// negative temporary ID; reconciliation replaces the temporary entry and
// its ID is never retained.
type ChatMessage struct {
	ID        int64           `json:"id"`
	Role      Role            `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  MessageMetadata `json:"metadata,omitempty"`
}

// IsTemporary reports whether the message is an unconfirmed optimistic
// entry.
func (m *ChatMessage) IsTemporary() bool {
	return m.ID < 0
}

// MessageMetadata carries upstream-attached message annotations. Fields
// the gateway does not understand are preserved in Extra and passed
// through untouched.
type MessageMetadata struct {
	Intent       string             `json:"intent,omitempty"`
	PracticeInfo *PracticeDirective `json:"practice_info,omitempty"`
	Extra        json.RawMessage    `json:"extra,omitempty"`
}

// IsZero reports whether the metadata carries no information.
func (md MessageMetadata) IsZero() bool {
	return md.Intent == "" && md.PracticeInfo == nil && len(md.Extra) == 0
}

// ChatMode is the display category derived from the latest AI reply's
// intent annotation.
type ChatMode string

const (
	ChatModePracticeSetup ChatMode = "practice_setup"
	ChatModeStudyPlan     ChatMode = "study_plan"
	ChatModeGeneral       ChatMode = "general"
)

// SendMessageRequest is the payload for sending a chat message.
type SendMessageRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
}
