package gaze

import "time"

// Sample is one raw gaze prediction from the eye-tracking engine.
// Samples are ephemeral: they live only in the tracker's rolling buffer.
type Sample struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Confidence float64   `json:"confidence"`
	T          time.Time `json:"t"`
}

// CalibrationBounds is the screen box recorded during biometric setup.
// Read-only after creation for the duration of an interview.
type CalibrationBounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
}

// Calibration is what the calibration store persists per interview: the
// derived bounds plus the raw samples they were computed from.
type Calibration struct {
	Bounds  CalibrationBounds `json:"bounds"`
	Samples []Sample          `json:"samples,omitempty"`
}

// Viewport is the screen area the candidate's display occupies.
type Viewport struct {
	Width  float64
	Height float64
}

// SafeZone is the region inside which gaze counts as on-task.
type SafeZone struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Zone derives the safe zone from calibration bounds expanded by margin,
// or from the viewport shrunk by margin when no calibration exists.
func Zone(bounds *CalibrationBounds, vp Viewport, margin float64) SafeZone {
	if bounds == nil {
		return SafeZone{
			MinX: margin,
			MaxX: vp.Width - margin,
			MinY: margin,
			MaxY: vp.Height - margin,
		}
	}
	return SafeZone{
		MinX: bounds.MinX - margin,
		MaxX: bounds.MaxX + margin,
		MinY: bounds.MinY - margin,
		MaxY: bounds.MaxY + margin,
	}
}

// Contains reports whether the point lies inside the zone.
func (z SafeZone) Contains(x, y float64) bool {
	return x >= z.MinX && x <= z.MaxX && y >= z.MinY && y <= z.MaxY
}

// Plausible rejects coordinates wildly outside the viewport. The engine
// occasionally predicts far off-screen; those samples are noise, not data.
func (vp Viewport) Plausible(x, y float64) bool {
	return x >= 0 && y >= 0 && x <= vp.Width*1.2 && y <= vp.Height*1.2
}
