package services

import "sort"

// LevelTable maps cumulative XP to a level. thresholds[i] is the minimum XP
// for level i+1; thresholds[0] must be 0 and the slice strictly increasing.
type LevelTable struct {
	thresholds []int64
}

func NewLevelTable(thresholds []int64) LevelTable {
	t := make([]int64, len(thresholds))
	copy(t, thresholds)
	return LevelTable{thresholds: t}
}

// LevelOf returns the largest level whose threshold is <= xp. Negative XP is level 1.
func (lt LevelTable) LevelOf(xp int64) int {
	// first index whose threshold exceeds xp
	i := sort.Search(len(lt.thresholds), func(i int) bool { return lt.thresholds[i] > xp })
	if i == 0 {
		return 1
	}
	return i
}

func (lt LevelTable) MaxLevel() int { return len(lt.thresholds) }

// NextThreshold returns the XP needed for level+1, or false at the max level.
func (lt LevelTable) NextThreshold(level int) (int64, bool) {
	if level < 1 {
		level = 1
	}
	if level >= len(lt.thresholds) {
		return 0, false
	}
	return lt.thresholds[level], true
}

// Threshold returns the minimum XP for level.
func (lt LevelTable) Threshold(level int) int64 {
	if level <= 1 || len(lt.thresholds) == 0 {
		return 0
	}
	if level > len(lt.thresholds) {
		level = len(lt.thresholds)
	}
	return lt.thresholds[level-1]
}
