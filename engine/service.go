package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnxp/core"
)

// defaultMaxAttempts bounds the optimistic-concurrency retry loop. Exhausting
// it surfaces core.ErrContention; the award was not recorded.
const defaultMaxAttempts = 5

// Service implements the gamification engine: XP award transactions, badge
// administration, and the read-only stats surface. All writes go through a
// versioned read-modify-write against Storage so concurrent awards for the
// same user serialize instead of losing updates.
type Service struct {
	storage     Storage
	bus         *EventBus
	catalog     *core.Catalog
	maxAttempts int
}

// NewService wires storage, event bus, and catalog into a cohesive API.
func NewService(storage Storage, bus *EventBus, catalog *core.Catalog) *Service {
	if storage == nil || bus == nil || catalog == nil {
		panic("NewService requires non-nil storage, bus, and catalog")
	}
	return &Service{storage: storage, bus: bus, catalog: catalog, maxAttempts: defaultMaxAttempts}
}

// Catalog returns the injected badge/achievement catalog.
func (s *Service) Catalog() *core.Catalog { return s.catalog }

// Subscribe registers a handler for committed domain events.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// Publish forwards an event to subscribers.
func (s *Service) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

// Close stops the event bus.
func (s *Service) Close() { s.bus.Close() }

// AwardResult reports the outcome of a committed XP award.
type AwardResult struct {
	TotalXP   int64        `json:"total_xp"`
	Level     int64        `json:"level"`
	LevelUp   bool         `json:"level_up"`
	NewBadges []core.Badge `json:"new_badges,omitempty"`
}

// Stats is the read-only gamification view of a user.
type Stats struct {
	UserID      core.UserID      `json:"user_id"`
	TotalXP     int64            `json:"total_xp"`
	Level       int64            `json:"level"`
	Badges      []core.Badge     `json:"badges"`
	Achievement core.Achievement `json:"achievement"`
	XPToNext    int64            `json:"xp_to_next"`
}

// CreateUser provisions the zero game state for a new user.
func (s *Service) CreateUser(ctx context.Context, user core.UserID) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return s.storage.Create(ctx, normalized)
}

// AwardXP adds amount XP to the user, recomputes the level, and awards every
// newly qualifying badge in the same commit. Negative amounts are rejected
// before any I/O; a zero amount is a valid no-op award. On version conflict
// the whole read-modify-write repeats from a fresh read, so the committed
// result always reflects the cumulative total, never a single award in
// isolation. Events are published only after the write is confirmed.
func (s *Service) AwardXP(ctx context.Context, user core.UserID, amount int64, reason string) (AwardResult, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return AwardResult{}, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	if amount < 0 {
		return AwardResult{}, fmt.Errorf("%w: xp amount %d is negative", core.ErrInvalidInput, amount)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		state, version, err := s.storage.Load(ctx, normalized)
		if err != nil {
			return AwardResult{}, err
		}

		if amount == 0 {
			// valid no-op award: report current state, write nothing
			return AwardResult{TotalXP: state.TotalXP, Level: state.Level}, nil
		}

		newTotal, err := core.AddSafe(state.TotalXP, amount)
		if err != nil {
			return AwardResult{}, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
		}
		newLevel := core.LevelFromXP(newTotal)
		levelUp := newLevel > state.Level

		next := state.Clone()
		next.TotalXP = newTotal
		next.Level = newLevel
		next.Updated = time.Now().UTC()

		var newBadges []core.Badge
		if levelUp {
			newBadges = s.catalog.AwardableBadges(state.Badges, newLevel)
			for _, b := range newBadges {
				next.Badges[b] = struct{}{}
			}
		}

		if err := s.storage.Save(ctx, normalized, next, version); err != nil {
			if errors.Is(err, core.ErrVersionMismatch) {
				continue
			}
			return AwardResult{}, err
		}

		s.bus.Publish(ctx, core.NewXPAwarded(normalized, amount, newTotal, reason))
		if levelUp {
			s.bus.Publish(ctx, core.NewLevelUp(normalized, newLevel, newTotal))
			for _, b := range newBadges {
				s.bus.Publish(ctx, core.NewBadgeAwarded(normalized, b, newLevel))
			}
			if prev := s.catalog.AchievementForLevel(state.Level); prev != s.catalog.AchievementForLevel(newLevel) {
				s.bus.Publish(ctx, core.NewAchievementUnlocked(normalized, s.catalog.AchievementForLevel(newLevel), newLevel))
			}
		}
		return AwardResult{TotalXP: newTotal, Level: newLevel, LevelUp: levelUp, NewBadges: newBadges}, nil
	}

	return AwardResult{}, fmt.Errorf("award xp for %q: %w", normalized, core.ErrContention)
}

// AwardBadge unconditionally adds a catalog badge to the user, independent of
// level. Awarding an already-held badge is a no-op, not an error.
func (s *Service) AwardBadge(ctx context.Context, user core.UserID, badge core.Badge) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	if err := core.ValidateBadgeID(badge); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	if _, ok := s.catalog.Badge(badge); !ok {
		return fmt.Errorf("%w: badge %q not in catalog", core.ErrInvalidInput, badge)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		state, version, err := s.storage.Load(ctx, normalized)
		if err != nil {
			return err
		}
		if state.HasBadge(badge) {
			return nil
		}
		next := state.Clone()
		next.Badges[badge] = struct{}{}
		next.Updated = time.Now().UTC()

		if err := s.storage.Save(ctx, normalized, next, version); err != nil {
			if errors.Is(err, core.ErrVersionMismatch) {
				continue
			}
			return err
		}
		s.bus.Publish(ctx, core.NewBadgeAwarded(normalized, badge, state.Level))
		return nil
	}
	return fmt.Errorf("award badge %q for %q: %w", badge, normalized, core.ErrContention)
}

// RemoveBadge removes a badge from the user's set. Removing an absent badge
// is a no-op. This is an administrative escape hatch; the engine itself never
// removes badges.
func (s *Service) RemoveBadge(ctx context.Context, user core.UserID, badge core.Badge) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	if err := core.ValidateBadgeID(badge); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		state, version, err := s.storage.Load(ctx, normalized)
		if err != nil {
			return err
		}
		if !state.HasBadge(badge) {
			return nil
		}
		next := state.Clone()
		delete(next.Badges, badge)
		next.Updated = time.Now().UTC()

		if err := s.storage.Save(ctx, normalized, next, version); err != nil {
			if errors.Is(err, core.ErrVersionMismatch) {
				continue
			}
			return err
		}
		s.bus.Publish(ctx, core.NewBadgeRevoked(normalized, badge))
		return nil
	}
	return fmt.Errorf("remove badge %q for %q: %w", badge, normalized, core.ErrContention)
}

// Stats returns the read-only gamification view for a user.
func (s *Service) Stats(ctx context.Context, user core.UserID) (Stats, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	state, _, err := s.storage.Load(ctx, normalized)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		UserID:      state.UserID,
		TotalXP:     state.TotalXP,
		Level:       state.Level,
		Badges:      state.BadgeList(),
		Achievement: s.catalog.AchievementForLevel(state.Level),
		XPToNext:    core.XPToNextLevel(state.TotalXP),
	}, nil
}
