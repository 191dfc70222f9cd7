package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventXPAwarded           EventType = "xp_awarded"
	EventLevelUp             EventType = "level_up"
	EventBadgeAwarded        EventType = "badge_awarded"
	EventBadgeRevoked        EventType = "badge_revoked"
	EventAchievementUnlocked EventType = "achievement_unlocked"
)

// Event is an immutable domain event describing a committed state change.
// Events are only ever emitted for writes that are confirmed committed.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	Time        time.Time   `json:"time"`
	UserID      UserID      `json:"user_id"`
	Amount      int64       `json:"amount,omitempty"`
	TotalXP     int64       `json:"total_xp,omitempty"`
	Level       int64       `json:"level,omitempty"`
	Badge       Badge       `json:"badge,omitempty"`
	Achievement Achievement `json:"achievement,omitempty"`
	Reason      string      `json:"reason,omitempty"`
}

func newEvent(typ EventType, user UserID) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), UserID: user}
}

func NewXPAwarded(user UserID, amount, total int64, reason string) Event {
	ev := newEvent(EventXPAwarded, user)
	ev.Amount = amount
	ev.TotalXP = total
	ev.Reason = reason
	return ev
}

func NewLevelUp(user UserID, level, total int64) Event {
	ev := newEvent(EventLevelUp, user)
	ev.Level = level
	ev.TotalXP = total
	return ev
}

func NewBadgeAwarded(user UserID, badge Badge, level int64) Event {
	ev := newEvent(EventBadgeAwarded, user)
	ev.Badge = badge
	ev.Level = level
	return ev
}

func NewBadgeRevoked(user UserID, badge Badge) Event {
	ev := newEvent(EventBadgeRevoked, user)
	ev.Badge = badge
	return ev
}

func NewAchievementUnlocked(user UserID, achievement Achievement, level int64) Event {
	ev := newEvent(EventAchievementUnlocked, user)
	ev.Achievement = achievement
	ev.Level = level
	return ev
}
