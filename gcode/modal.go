package gcode

import "github.com/nasa-jpl/tinyg/status"

// Group identifies a modal group: a set of mutually exclusive G/M words
// that share one persistent setting. At most one word from each group may
// appear in a single block (spec section 4.2).
type Group int

// Modal groups, per RS-274/NGC, restricted to the dialect of spec section 6.
const (
	GroupNone Group = iota
	GroupMotion
	GroupPlane
	GroupUnits
	GroupDistance
	GroupFeedRateMode
	GroupCoordinateSystem
	GroupStopping
	GroupSpindle
	GroupCoolant
	GroupPathControl
	GroupNonModal
	GroupTool
)

// groupOfG maps a G-code number to its modal group. Numbers not present
// here (and not otherwise handled, e.g. G10/G92 below) are non-modal or
// unsupported.
var groupOfG = map[float64]Group{
	0:  GroupMotion,
	1:  GroupMotion,
	2:  GroupMotion,
	3:  GroupMotion,
	80: GroupMotion,

	17: GroupPlane,
	18: GroupPlane,
	19: GroupPlane,

	20: GroupUnits,
	21: GroupUnits,

	90: GroupDistance,
	91: GroupDistance,

	93: GroupFeedRateMode,
	94: GroupFeedRateMode,

	54: GroupCoordinateSystem,
	55: GroupCoordinateSystem,
	56: GroupCoordinateSystem,
	57: GroupCoordinateSystem,
	58: GroupCoordinateSystem,
	59: GroupCoordinateSystem,
	53: GroupCoordinateSystem,

	61:   GroupPathControl,
	61.1: GroupPathControl,
	64:   GroupPathControl,

	4:  GroupNonModal,
	10: GroupNonModal,
	92: GroupNonModal,
}

var groupOfM = map[float64]Group{
	0:  GroupStopping,
	2:  GroupStopping,
	30: GroupStopping,

	3: GroupSpindle,
	4: GroupSpindle,
	5: GroupSpindle,

	7: GroupCoolant,
	8: GroupCoolant,
	9: GroupCoolant,
}

// GroupOf returns the modal group a word belongs to, if any. Words that
// carry data rather than mode (axis words, F, S, T, N, I/J/K, R, P, Q, D,
// L) return GroupNone — they never conflict with each other and may
// appear any number of times that makes sense for the block (in practice
// once, enforced elsewhere).
func GroupOf(w Word) Group {
	switch w.Letter {
	case 'G':
		if g, ok := groupOfG[w.Value]; ok {
			return g
		}
		return GroupNone
	case 'M':
		if g, ok := groupOfM[w.Value]; ok {
			return g
		}
		return GroupNone
	case 'T':
		return GroupTool
	default:
		return GroupNone
	}
}

// CheckModalGroups verifies that no two words in the block share a modal
// group, returning status.ModalGroupViolation on the first conflict.
func CheckModalGroups(b Block) status.Code {
	seen := make(map[Group]bool)
	for _, w := range b.Words {
		g := GroupOf(w)
		if g == GroupNone {
			continue
		}
		if seen[g] {
			return status.ModalGroupViolation
		}
		seen[g] = true
	}
	return status.OK
}

// evalOrder gives the RS-274/NGC evaluation-order rank of a modal group,
// per spec section 4.2: comments (handled before tokenizing) -> feed-rate
// mode -> feed rate -> spindle speed -> tool -> tool-change -> spindle
// on/off -> coolant -> overrides (not implemented) -> dwell -> plane ->
// units -> cutter compensation (not implemented) -> coordinate-system
// selection -> path-control mode -> distance mode -> origin offsets ->
// motion -> stop.
func evalOrder(w Word) int {
	switch {
	case w.Letter == 'G' && w.Value == 93, w.Letter == 'G' && w.Value == 94:
		return 1 // feed-rate mode
	case w.Letter == 'F':
		return 2
	case w.Letter == 'S':
		return 3
	case w.Letter == 'T':
		return 4
	case w.Letter == 'M' && (w.Value == 3 || w.Value == 4 || w.Value == 5):
		return 6
	case w.Letter == 'M' && (w.Value == 7 || w.Value == 8 || w.Value == 9):
		return 7
	case w.Letter == 'G' && w.Value == 4:
		return 9 // dwell
	case w.Letter == 'G' && (w.Value == 17 || w.Value == 18 || w.Value == 19):
		return 10 // plane
	case w.Letter == 'G' && (w.Value == 20 || w.Value == 21):
		return 11 // units
	case w.Letter == 'G' && GroupOf(w) == GroupCoordinateSystem:
		return 13
	case w.Letter == 'G' && GroupOf(w) == GroupPathControl:
		return 14 // path control mode
	case w.Letter == 'G' && (w.Value == 90 || w.Value == 91):
		return 15 // distance mode
	case w.Letter == 'G' && (w.Value == 92 || w.Value == 10):
		return 16 // origin offsets
	case w.Letter == 'G' && GroupOf(w) == GroupMotion:
		return 17 // motion
	case w.Letter == 'M' && GroupOf(w) == GroupStopping:
		return 18 // stop
	default:
		// axis words (X/Y/Z/A/B/C) and motion-adjacent data words
		// (I/J/K/R/P/Q/D/L/N) are consumed alongside the motion word
		// they belong to, so they rank with it.
		return 17
	}
}

// SortByEvaluationOrder returns a copy of words ordered per the RS-274
// evaluation sequence, stable within a rank so that e.g. multiple axis
// words keep their original relative order.
func SortByEvaluationOrder(words []Word) []Word {
	out := make([]Word, len(words))
	copy(out, words)
	// insertion sort: blocks are short (a handful of words), and stability
	// matters more than asymptotic speed here.
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && evalOrder(out[j-1]) > evalOrder(out[j]) {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}
