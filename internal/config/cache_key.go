package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ChatSnapshotKey returns the cache key for a user's chat snapshot
// (messages, history flags). One snapshot per user; overwritten on save.
func (r *CacheKeyStruct) ChatSnapshotKey(userID int) string {
	return fmt.Sprintf("user:%d:chat:snapshot", userID)
}

// ChatVisitedKey returns the cache key for the "has this login visited
// chat" marker. Keyed by login timestamp so a fresh login starts fresh.
func (r *CacheKeyStruct) ChatVisitedKey(userID int, loginUnix int64) string {
	return fmt.Sprintf("user:%d:login:%d:chat_visited", userID, loginUnix)
}

// PracticeSessionKey returns the cache key for an in-flight practice
// session's collected answers.
func (r *CacheKeyStruct) PracticeSessionKey(userID int, sessionID string) string {
	return fmt.Sprintf("user:%d:practice:%s", userID, sessionID)
}

// ChatEventChannel returns the Redis PubSub channel for a user's chat
// event stream (WebSocket fan-out).
func (r *CacheKeyStruct) ChatEventChannel(userID int) string {
	return fmt.Sprintf("user:%d:chat:events", userID)
}

var CacheKey = NewCacheKeyStruct()
