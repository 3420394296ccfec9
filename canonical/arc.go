package canonical

import (
	"math"

	"github.com/nasa-jpl/tinyg/gcode"
	"github.com/nasa-jpl/tinyg/status"
)

// ArcSegmentLen is the default chord length targeted when decomposing an
// arc into linear segments (spec section 4.2), in millimeters.
const ArcSegmentLen = 0.03

// arcCorrectionInterval is N_correction: every this many chords, the
// incrementally-rotated chord point is replaced by the exact trig form
// to bound accumulated rounding drift.
const arcCorrectionInterval = 30

// planeAxes returns the indices into Vec6 of the two in-plane axes and
// the one helical (plane-normal) axis, for the given plane.
func planeAxes(p Plane) (i, j, k int) {
	switch p {
	case PlaneXY:
		return axX, axY, axZ
	case PlaneXZ:
		return axX, axZ, axY
	case PlaneYZ:
		return axY, axZ, axX
	default:
		return axX, axY, axZ
	}
}

// decomposeArc implements G2/G3 arc decomposition: it computes the arc's
// center and included angle from either the I/J/K offset form or the R
// radius form, then emits a series of OpArcChord operations approximating
// the arc with straight chords of length ArcSegmentLen.
func decomposeArc(s State, b gcode.Block, target Vec6, clockwise bool, feedPerSec float64) ([]Op, status.Code) {
	pi, pj, _ := planeAxes(s.Plane)
	start := s.WorkPosition

	var center [2]float64
	ii, hasI := b.Has('I')
	jj, hasJ := b.Has('J')
	kk, hasK := b.Has('K')
	_ = kk
	r, hasR := b.Has('R')

	scale := 1.0
	if s.Units == UnitsInch {
		scale = MMPerInch
	}

	sx, sy := start[pi], start[pj]
	ex, ey := target[pi], target[pj]

	switch {
	case hasR:
		radius := r * scale
		if radius == 0 {
			return nil, status.ArcSpecificationError
		}
		dx, dy := ex-sx, ey-sy
		chordLen := math.Hypot(dx, dy)
		if chordLen == 0 {
			return nil, status.ArcSpecificationError
		}
		half := chordLen / 2
		absR := math.Abs(radius)
		if absR < half {
			return nil, status.ArcSpecificationError
		}
		// numerical conditioning guard: as the chord approaches the
		// diameter (Delta-theta -> pi), h shrinks toward zero and which
		// side of the chord the center lies on becomes numerically
		// ambiguous. Reject rather than compute a degenerate center,
		// per the Open Question resolution in DESIGN.md.
		const conditioningEps = 1e-6
		if (absR-half)/absR < conditioningEps {
			return nil, status.ArcSpecificationError
		}
		h := math.Sqrt(math.Max(absR*absR-half*half, 0))
		// midpoint of the chord
		mx, my := (sx+ex)/2, (sy+ey)/2
		// unit perpendicular to the chord
		ux, uy := -dy/chordLen, dx/chordLen
		// choose the side per sign(R) and direction convention: R>0
		// picks the center that yields the minor (<=180 deg) arc, R<0
		// the major arc.
		sign := 1.0
		if (radius < 0) != clockwise {
			sign = -1.0
		}
		center[0] = mx + sign*h*ux
		center[1] = my + sign*h*uy
	case hasI || hasJ || hasK:
		center[0] = sx + ii*scale
		center[1] = sy + jj*scale
	default:
		return nil, status.ArcSpecificationError
	}

	radiusStart := math.Hypot(sx-center[0], sy-center[1])
	radiusEnd := math.Hypot(ex-center[0], ey-center[1])
	if radiusStart == 0 {
		return nil, status.ArcSpecificationError
	}
	// tolerate small radius mismatch (rounding in the I/J/K form); beyond
	// that the arc is not well specified.
	if math.Abs(radiusStart-radiusEnd)/radiusStart > 0.01 {
		return nil, status.ArcSpecificationError
	}

	startAngle := math.Atan2(sy-center[1], sx-center[0])
	endAngle := math.Atan2(ey-center[1], ex-center[0])

	var totalAngle float64
	isFullCircle := sx == ex && sy == ey && (hasI || hasJ || hasK)
	if isFullCircle {
		totalAngle = 2 * math.Pi
	} else if clockwise {
		totalAngle = startAngle - endAngle
		if totalAngle <= 0 {
			totalAngle += 2 * math.Pi
		}
	} else {
		totalAngle = endAngle - startAngle
		if totalAngle <= 0 {
			totalAngle += 2 * math.Pi
		}
	}
	if totalAngle == 0 {
		return nil, status.ArcSpecificationError
	}

	arcLen := radiusStart * totalAngle
	n := int(math.Ceil(arcLen / ArcSegmentLen))
	if n < 1 {
		n = 1
	}
	dTheta := totalAngle / float64(n)
	if clockwise {
		dTheta = -dTheta
	}

	ops := make([]Op, 0, n)
	cx, cy := center[0], center[1]
	theta := startAngle
	px, py := sx, sy
	for c := 1; c <= n; c++ {
		if c == n {
			px, py = ex, ey
		} else if c%arcCorrectionInterval == 0 {
			theta = startAngle + dTheta*float64(c)
			px = cx + radiusStart*math.Cos(theta)
			py = cy + radiusStart*math.Sin(theta)
		} else {
			theta += dTheta
			// incremental rotation about the center, matching the
			// previous chord point
			dx, dy := px-cx, py-cy
			cosT, sinT := math.Cos(dTheta), math.Sin(dTheta)
			nx := cx + dx*cosT - dy*sinT
			ny := cy + dx*sinT + dy*cosT
			px, py = nx, ny
		}

		chordTarget := start
		chordTarget[pi] = px
		chordTarget[pj] = py
		frac := float64(c) / float64(n)
		for idx := range chordTarget {
			if idx == pi || idx == pj {
				continue
			}
			chordTarget[idx] = start[idx] + frac*(target[idx]-start[idx])
		}
		machineTarget := s.WorkToMachine(chordTarget)
		ops = append(ops, Op{
			Kind:        OpArcChord,
			Target:      machineTarget,
			FeedRate:    feedPerSec,
			LineNumber:  s.LineNumber,
			IsLastChord: c == n,
		})
	}
	return ops, status.OK
}
