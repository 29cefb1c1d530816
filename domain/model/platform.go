package model

import (
	"fmt"
	"strings"
)

// Platform is a distribution target with its normalisation loudness
type Platform struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	TargetLUFS float64 `json:"target_lufs"`
}

// Platforms lists the supported loudness targets
var Platforms = []Platform{
	{ID: "spotify", Label: "Spotify", TargetLUFS: -14},
	{ID: "youtube", Label: "YouTube", TargetLUFS: -14},
	{ID: "apple", Label: "Apple Music", TargetLUFS: -16},
	{ID: "soundcloud", Label: "SoundCloud", TargetLUFS: -10},
	{ID: "tidal", Label: "Tidal", TargetLUFS: -14},
	{ID: "cd", Label: "CD Master", TargetLUFS: -9},
}

// DefaultPlatformID is used when no platform is selected
const DefaultPlatformID = "spotify"

// LookupPlatform finds a platform by id (case-insensitive)
func LookupPlatform(id string) (Platform, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range Platforms {
		if p.ID == id {
			return p, nil
		}
	}
	return Platform{}, fmt.Errorf("unknown platform %q", id)
}

// ApplyPlatformTarget returns params with limiter ceiling and intensity set for the platform:
// targets at or above -10 LUFS get -0.3 dBTP / 85 %, at or above -14 LUFS get -1 dBTP / 70 %,
// quieter targets get -1.5 dBTP / 60 %.
func ApplyPlatformTarget(params MasteringParams, platformID string) (MasteringParams, error) {
	p, err := LookupPlatform(platformID)
	if err != nil {
		return params, err
	}
	switch {
	case p.TargetLUFS >= -10:
		params.LimiterCeiling = -0.3
		params.Intensity = 85
	case p.TargetLUFS >= -14:
		params.LimiterCeiling = -1
		params.Intensity = 70
	default:
		params.LimiterCeiling = -1.5
		params.Intensity = 60
	}
	return params, nil
}

// GapToTarget is target minus measured loudness; positive means the track must get louder.
func GapToTarget(m LoudnessMeasurement, p Platform) float64 {
	return p.TargetLUFS - m.IntegratedLUFS
}
