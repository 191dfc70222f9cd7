package core

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"
)

// UserID uniquely identifies a learner in the gamification domain.
type UserID string

// Badge is a one-time milestone marker identifier.
type Badge string

// Achievement is a coarse tier label covering a contiguous range of levels.
type Achievement string

// Version is the optimistic-concurrency token attached to a stored user state.
// Adapters bump it on every successful write; a conditional write keyed on a
// stale version must fail with ErrVersionMismatch.
type Version uint64

// UserGameState is a snapshot of a user's gamification state. Level is always
// derived from TotalXP; the two are only ever persisted together.
type UserGameState struct {
	UserID  UserID             `json:"user_id"`
	TotalXP int64              `json:"total_xp"`
	Level   int64              `json:"level"`
	Badges  map[Badge]struct{} `json:"badges"`
	Updated time.Time          `json:"updated"`
}

// NewUserGameState returns the zero state every user starts from.
func NewUserGameState(user UserID) UserGameState {
	return UserGameState{
		UserID:  user,
		TotalXP: 0,
		Level:   1,
		Badges:  map[Badge]struct{}{},
		Updated: time.Now().UTC(),
	}
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (s UserGameState) Clone() UserGameState {
	cp := s
	cp.Badges = make(map[Badge]struct{}, len(s.Badges))
	for b := range s.Badges {
		cp.Badges[b] = struct{}{}
	}
	return cp
}

// HasBadge reports whether the badge is held.
func (s UserGameState) HasBadge(b Badge) bool {
	_, ok := s.Badges[b]
	return ok
}

// BadgeList returns the held badges sorted lexicographically for stable output.
func (s UserGameState) BadgeList() []Badge {
	out := make([]Badge, 0, len(s.Badges))
	for b := range s.Badges {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateBadgeID ensures non-empty badge id with simple charset check.
func ValidateBadgeID(b Badge) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return errors.New("empty badge id")
	}
	// simple check: alnum, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid badge id")
	}
	return nil
}
