package core

import "math"

// MaxLevel is a defensive ceiling on level derivation. Pathological XP values
// (overflow, corrupted records) stop here instead of spinning; the capped
// level is returned, not an error.
const MaxLevel = 10000

// Threshold returns the cumulative XP required to reach the given level.
// The curve is piecewise and strictly increasing:
//
//	level <= 1          0
//	level 2..5          floor(100 * 1.5^(level-1))   fast early progression
//	level 6..20         Threshold(5) + (level-5)*200  moderate linear phase
//	level >= 21         Threshold(20) + (level-20)*500  steep linear phase
//
// The linear phases keep late-game progression tractable for unbounded levels
// with no float overflow and no rebalancing.
func Threshold(level int64) int64 {
	switch {
	case level <= 1:
		return 0
	case level <= 5:
		return int64(math.Floor(100 * math.Pow(1.5, float64(level-1))))
	case level <= 20:
		return Threshold(5) + (level-5)*200
	default:
		return Threshold(20) + (level-20)*500
	}
}

// LevelFromXP returns the largest level whose threshold is at or below xp.
// A user sitting exactly on a threshold is that level (inclusive lower bound).
// Negative xp clamps to level 1.
func LevelFromXP(xp int64) int64 {
	level := int64(1)
	for level < MaxLevel && Threshold(level+1) <= xp {
		level++
	}
	return level
}

// XPForCurrentLevel returns the XP floor of the given level.
func XPForCurrentLevel(level int64) int64 {
	if level < 1 {
		level = 1
	}
	return Threshold(level)
}

// XPForNextLevel returns the XP required to advance past the given level.
func XPForNextLevel(level int64) int64 {
	if level < 1 {
		level = 1
	}
	return Threshold(level + 1)
}

// XPToNextLevel returns how much XP a user with the given total still needs
// to level up.
func XPToNextLevel(totalXP int64) int64 {
	next := Threshold(LevelFromXP(totalXP) + 1)
	if next <= totalXP {
		return 0 // capped at MaxLevel
	}
	return next - totalXP
}
