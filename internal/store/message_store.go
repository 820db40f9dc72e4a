// Package store holds the in-memory conversation state for active chat
// sessions. One MessageStore per user; the chat orchestrator is its only
// writer.
package store

import (
	"sort"
	"sync"

	"github.com/stemsi/tutor-gateway/internal/model"
)

// MessageStore is an ordered list of chat messages with optimistic-append
// and reconciliation semantics.
//
// Ordering invariant: messages are kept sorted by timestamp ascending.
// ID invariant: after reconciliation every ID in the list is unique;
// temporary IDs are replaced, never retained.
type MessageStore struct {
	mu       sync.Mutex
	messages []model.ChatMessage
	// nextTempID decreases monotonically so temporary IDs can never
	// collide with server-assigned (positive) IDs.
	nextTempID int64
}

// NewMessageStore creates an empty MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{nextTempID: -1}
}

// Append adds a confirmed message, keeping timestamp order.
func (s *MessageStore) Append(msg model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(msg)
}

// AppendOptimistic adds an unconfirmed message under a fresh temporary ID
// and returns that ID for later reconciliation.
func (s *MessageStore) AppendOptimistic(msg model.ChatMessage) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = s.nextTempID
	s.nextTempID--
	s.insert(msg)
	return msg.ID
}

// Reconcile replaces the optimistic message identified by tempID with its
// server-confirmed copy. Replacement is keyed by the temporary ID, not by
// position, so it stays correct if responses arrive out of order. Returns
// false if tempID is no longer present.
func (s *MessageStore) Reconcile(tempID int64, confirmed model.ChatMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == tempID {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			s.insert(confirmed)
			return true
		}
	}
	return false
}

// Drop removes the message with the given ID, if present.
func (s *MessageStore) Drop(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// MergeHistory folds fetched history into the list. De-duplication is by
// ID and existing entries always win, which makes the merge idempotent:
// loading history twice yields the same list as loading it once. The
// union is re-sorted by timestamp.
func (s *MessageStore) MergeHistory(history []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int64]struct{}, len(s.messages))
	for _, m := range s.messages {
		seen[m.ID] = struct{}{}
	}

	for _, h := range history {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		s.messages = append(s.messages, h)
	}

	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Timestamp.Before(s.messages[j].Timestamp)
	})
}

// Messages returns a copy of the current list in timestamp order.
func (s *MessageStore) Messages() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Replace swaps the entire list, used when restoring a persisted
// snapshot. The list is re-sorted to uphold the ordering invariant even
// if the snapshot was written by an older build.
func (s *MessageStore) Replace(messages []model.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]model.ChatMessage, len(messages))
	copy(s.messages, messages)
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].Timestamp.Before(s.messages[j].Timestamp)
	})
}

// Clear empties the list.
func (s *MessageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// insert places msg in timestamp order. Callers hold the lock.
func (s *MessageStore) insert(msg model.ChatMessage) {
	i := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].Timestamp.After(msg.Timestamp)
	})
	s.messages = append(s.messages, model.ChatMessage{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
}
