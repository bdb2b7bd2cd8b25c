package audiomix

/*------------------------------------------------------------------
 *
 * Purpose: Per-output-node volume curves (§3 [ADD 4.12]). Modeled as the
 *	    §9 "per-card configuration via keyed sections" pattern: an
 *	    immutable map loaded once at device creation, keyed by output
 *	    node name, with a well-defined fallback to a default curve.
 *
 *	    §9's dual-dB-convention redesign note is applied here: curves
 *	    are defined in decidecibels (dB * 10) for configuration/
 *	    transport, and converted to a float linear scaler at exactly
 *	    one seam (ToScaler), which is the only place dB meets the DSP
 *	    boundary.
 *
 *---------------------------------------------------------------*/

import "math"

// VolumeCurve maps a requested decidecibel attenuation to a linear gain
// scaler. Steps must be sorted ascending by Decidecibels and normally
// span from a large negative value (silence) to 0 (unity).
type VolumeCurve struct {
	Steps []VolumeCurveStep
}

// VolumeCurveStep is one control point of a VolumeCurve.
type VolumeCurveStep struct {
	Decidecibels int // dB * 10, e.g. -200 means -20.0 dB
	Scaler       float64
}

// DefaultVolumeCurve is a flat linear curve (0 dB at scaler 1.0, linear
// decay to silence at -100 dB), used for any node that has no explicit
// curve configured.
var DefaultVolumeCurve = VolumeCurve{Steps: []VolumeCurveStep{
	{Decidecibels: -1000, Scaler: 0.0},
	{Decidecibels: 0, Scaler: 1.0},
}}

// ToScaler converts a requested decidecibel value to a linear scaler by
// linear interpolation between the two bracketing steps (or by clamping
// to the nearest endpoint). This is the single seam where the
// decidecibel and linear-scaler dB conventions meet (§9).
func (c VolumeCurve) ToScaler(decidecibels int) float64 {
	steps := c.Steps
	if len(steps) == 0 {
		steps = DefaultVolumeCurve.Steps
	}
	if decidecibels <= steps[0].Decidecibels {
		return steps[0].Scaler
	}
	if decidecibels >= steps[len(steps)-1].Decidecibels {
		return steps[len(steps)-1].Scaler
	}
	for i := 1; i < len(steps); i++ {
		if decidecibels <= steps[i].Decidecibels {
			lo, hi := steps[i-1], steps[i]
			span := float64(hi.Decidecibels - lo.Decidecibels)
			if span == 0 {
				return hi.Scaler
			}
			frac := float64(decidecibels-lo.Decidecibels) / span
			return lo.Scaler + (hi.Scaler-lo.Scaler)*frac
		}
	}
	return steps[len(steps)-1].Scaler
}

// VolumeCurveSet is the immutable, per-device table of curves keyed by
// output-node name, loaded once at device creation (§9).
type VolumeCurveSet map[string]VolumeCurve

// CurveFor returns the curve for nodeName, falling back to
// DefaultVolumeCurve when no curve is configured for that node.
func (s VolumeCurveSet) CurveFor(nodeName string) VolumeCurve {
	if c, ok := s[nodeName]; ok {
		return c
	}
	return DefaultVolumeCurve
}

// DecidecibelsFromScaler is the inverse mapping used when a control
// surface reports a linear value that must be logged/transported as dB.
func DecidecibelsFromScaler(scaler float64) int {
	if scaler <= 0 {
		return -1000
	}
	return int(math.Round(20 * math.Log10(scaler) * 10))
}
