package core

import (
	"errors"
	"fmt"
)

// BadgeDefinition maps a level milestone to the badge awarded for reaching it.
type BadgeDefinition struct {
	TriggerLevel int64  `json:"trigger_level"`
	ID           Badge  `json:"id"`
	Title        string `json:"title,omitempty"`
}

// AchievementDefinition labels a contiguous range of levels. MaxLevel == 0
// marks the final, unbounded range.
type AchievementDefinition struct {
	MinLevel int64       `json:"min_level"`
	MaxLevel int64       `json:"max_level"`
	ID       Achievement `json:"id"`
}

// Catalog is the immutable badge and achievement configuration injected into
// the engine. Construct with NewCatalog; a validated catalog needs no
// synchronization and is safe to share process-wide.
type Catalog struct {
	badges       []BadgeDefinition
	achievements []AchievementDefinition
	byID         map[Badge]BadgeDefinition
}

// NewCatalog validates and freezes the given tables. Badge trigger levels
// must be strictly increasing; achievement ranges must partition [1, inf)
// contiguously with the last range unbounded.
func NewCatalog(badges []BadgeDefinition, achievements []AchievementDefinition) (*Catalog, error) {
	byID := make(map[Badge]BadgeDefinition, len(badges))
	prev := int64(0)
	for i, b := range badges {
		if err := ValidateBadgeID(b.ID); err != nil {
			return nil, fmt.Errorf("badge[%d]: %w", i, err)
		}
		if b.TriggerLevel <= prev {
			return nil, fmt.Errorf("badge[%d] %q: trigger level %d not strictly increasing", i, b.ID, b.TriggerLevel)
		}
		if _, dup := byID[b.ID]; dup {
			return nil, fmt.Errorf("badge[%d]: duplicate id %q", i, b.ID)
		}
		prev = b.TriggerLevel
		byID[b.ID] = b
	}

	if len(achievements) == 0 {
		return nil, errors.New("achievement table cannot be empty")
	}
	if achievements[0].MinLevel != 1 {
		return nil, errors.New("achievement ranges must start at level 1")
	}
	for i, a := range achievements {
		if a.ID == "" {
			return nil, fmt.Errorf("achievement[%d]: empty id", i)
		}
		last := i == len(achievements)-1
		if last {
			if a.MaxLevel != 0 {
				return nil, fmt.Errorf("achievement[%d] %q: final range must be unbounded (max_level 0)", i, a.ID)
			}
			continue
		}
		if a.MaxLevel < a.MinLevel {
			return nil, fmt.Errorf("achievement[%d] %q: max level %d below min level %d", i, a.ID, a.MaxLevel, a.MinLevel)
		}
		if achievements[i+1].MinLevel != a.MaxLevel+1 {
			return nil, fmt.Errorf("achievement[%d] %q: gap or overlap after max level %d", i, a.ID, a.MaxLevel)
		}
	}

	cat := &Catalog{
		badges:       append([]BadgeDefinition(nil), badges...),
		achievements: append([]AchievementDefinition(nil), achievements...),
		byID:         byID,
	}
	return cat, nil
}

// Badges returns a copy of the badge table in ascending trigger order.
func (c *Catalog) Badges() []BadgeDefinition {
	return append([]BadgeDefinition(nil), c.badges...)
}

// Achievements returns a copy of the achievement table.
func (c *Catalog) Achievements() []AchievementDefinition {
	return append([]AchievementDefinition(nil), c.achievements...)
}

// Badge looks up a badge definition by id.
func (c *Catalog) Badge(id Badge) (BadgeDefinition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

// IsMilestoneLevel reports whether some badge triggers exactly at level.
// Used by presentation layers to decide on special UI, not by the award path.
func (c *Catalog) IsMilestoneLevel(level int64) bool {
	for _, b := range c.badges {
		if b.TriggerLevel == level {
			return true
		}
		if b.TriggerLevel > level {
			break
		}
	}
	return false
}

// AchievementForLevel returns the achievement covering the level. Ranges are
// contiguous and exhaustive, so any level >= 1 has exactly one match.
func (c *Catalog) AchievementForLevel(level int64) Achievement {
	if level < 1 {
		level = 1
	}
	for _, a := range c.achievements {
		if level >= a.MinLevel && (a.MaxLevel == 0 || level <= a.MaxLevel) {
			return a.ID
		}
	}
	// unreachable for a validated catalog
	return c.achievements[len(c.achievements)-1].ID
}

// AwardableBadges returns every badge whose trigger level is at or below
// newLevel and which is not already held, in ascending trigger order so
// notifications are deterministic. A jump across several milestones yields
// all of them in one pass.
func (c *Catalog) AwardableBadges(held map[Badge]struct{}, newLevel int64) []Badge {
	var out []Badge
	for _, b := range c.badges {
		if b.TriggerLevel > newLevel {
			break
		}
		if _, ok := held[b.ID]; ok {
			continue
		}
		out = append(out, b.ID)
	}
	return out
}

// DefaultCatalog returns the stock learning-platform catalog: a badge every
// few levels and tier achievements partitioning all levels.
func DefaultCatalog() *Catalog {
	cat, err := NewCatalog(
		[]BadgeDefinition{
			{TriggerLevel: 5, ID: "level-5", Title: "Getting Started"},
			{TriggerLevel: 10, ID: "level-10", Title: "Committed"},
			{TriggerLevel: 15, ID: "level-15", Title: "Dedicated"},
			{TriggerLevel: 20, ID: "level-20", Title: "Scholar"},
			{TriggerLevel: 25, ID: "level-25", Title: "Veteran"},
			{TriggerLevel: 30, ID: "level-30", Title: "Sage"},
			{TriggerLevel: 40, ID: "level-40", Title: "Luminary"},
			{TriggerLevel: 50, ID: "level-50", Title: "Legend"},
			{TriggerLevel: 75, ID: "level-75", Title: "Mythic"},
			{TriggerLevel: 100, ID: "level-100", Title: "Centurion"},
		},
		[]AchievementDefinition{
			{MinLevel: 1, MaxLevel: 4, ID: "beginner"},
			{MinLevel: 5, MaxLevel: 9, ID: "learner"},
			{MinLevel: 10, MaxLevel: 14, ID: "achiever"},
			{MinLevel: 15, MaxLevel: 19, ID: "specialist"},
			{MinLevel: 20, MaxLevel: 29, ID: "expert"},
			{MinLevel: 30, MaxLevel: 0, ID: "master"},
		},
	)
	if err != nil {
		panic("default catalog invalid: " + err.Error())
	}
	return cat
}
