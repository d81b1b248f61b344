package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LoginSessionKey returns the cache key holding the active token ID of a profile.
func (r *CacheKeyStruct) LoginSessionKey(profileID string) string {
	return fmt.Sprintf("login:%s", profileID)
}

// ExamInfoKey returns the cache key for an exam's public metadata.
func (r *CacheKeyStruct) ExamInfoKey(examID string) string {
	return fmt.Sprintf("exam:%s:info", examID)
}

// ExamPaperKey returns the cache key for an exam's candidate-facing question list.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

// ParticipationStartKey returns the cache key for an attempt's start time (unix seconds).
func (r *CacheKeyStruct) ParticipationStartKey(participationID string) string {
	return fmt.Sprintf("participation:%s:started_at", participationID)
}

// ParticipationAnswersKey returns the cache key for an attempt's autosaved answers hash.
func (r *CacheKeyStruct) ParticipationAnswersKey(participationID string) string {
	return fmt.Sprintf("participation:%s:answers", participationID)
}

// SessionSnapshotKey returns the key a candidate client stores its session snapshot under.
func (r *CacheKeyStruct) SessionSnapshotKey(profile string) string {
	return fmt.Sprintf("client:%s:exam_session", profile)
}

var CacheKey = NewCacheKeyStruct()
