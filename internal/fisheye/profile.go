package fisheye

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Profile describes one camera's lens calibration. Immutable once
// constructed; left and right cameras carry independent profiles.
type Profile struct {
	// CenterX, CenterY locate the optical axis in source pixels.
	CenterX float64
	CenterY float64
	// Radius is the pixel radius of the usable circular image.
	Radius float64
	// FOVDeg is the angular extent of the lens, typically >= 180.
	FOVDeg float64
	// Distortion holds radial correction coefficients (k1, k2, ...)
	// applied to the normalised radius. Empty means pure equidistant.
	Distortion []float64
}

// DefaultProfile returns a profile for a lens whose image circle is
// inscribed in a width x height source frame. The aperture ratio matches
// the recorder convention: FOV = aperture * 180 degrees.
func DefaultProfile(width, height int, aperture float64) Profile {
	side := float64(min(width, height))
	return Profile{
		CenterX: float64(width) / 2,
		CenterY: float64(height) / 2,
		Radius:  side / 2,
		FOVDeg:  aperture * 180,
	}
}

// Validate checks the profile for values the lens model cannot work with.
func (p Profile) Validate() error {
	if p.Radius <= 0 {
		return fmt.Errorf("lens radius must be positive, got %v", p.Radius)
	}
	if p.FOVDeg <= 0 || p.FOVDeg > 360 {
		return fmt.Errorf("lens field of view must be in (0, 360] degrees, got %v", p.FOVDeg)
	}
	if p.CenterX < 0 || p.CenterY < 0 {
		return fmt.Errorf("lens center (%v, %v) must be non-negative", p.CenterX, p.CenterY)
	}
	return nil
}

// profileFile is the on-disk JSON schema. Pointer fields distinguish
// "absent" from zero so partial profiles inherit defaults.
type profileFile struct {
	CenterX    *float64  `json:"center_x,omitempty"`
	CenterY    *float64  `json:"center_y,omitempty"`
	Radius     *float64  `json:"radius,omitempty"`
	FOVDeg     *float64  `json:"fov_deg,omitempty"`
	Distortion []float64 `json:"distortion,omitempty"`
}

// LoadProfile reads a JSON profile file, filling unset fields from base.
// Fields omitted from the JSON file retain the base values, so partial
// calibration files are safe.
func LoadProfile(path string, base Profile) (Profile, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return Profile{}, fmt.Errorf("profile file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	var pf profileFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile file %s: %w", cleanPath, err)
	}

	out := base
	if pf.CenterX != nil {
		out.CenterX = *pf.CenterX
	}
	if pf.CenterY != nil {
		out.CenterY = *pf.CenterY
	}
	if pf.Radius != nil {
		out.Radius = *pf.Radius
	}
	if pf.FOVDeg != nil {
		out.FOVDeg = *pf.FOVDeg
	}
	if pf.Distortion != nil {
		out.Distortion = append([]float64(nil), pf.Distortion...)
	}

	if err := out.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", cleanPath, err)
	}
	return out, nil
}
