package model

// LoudnessMeasurement is the result of one BS.1770-4 analysis pass.
// dB values are rounded to one decimal.
type LoudnessMeasurement struct {
	IntegratedLUFS float64 `json:"lufs"`
	TruePeakDB     float64 `json:"true_peak_dbtp"`
	LRA            float64 `json:"lra"`
	Duration       float64 `json:"duration_seconds"`
	SampleRate     int     `json:"sample_rate"`
	Channels       int     `json:"channels"`
}

// Meters are the 0-100 % bar values shown next to a measurement
type Meters struct {
	Loudness float64 `json:"loudness"`
	Dynamics float64 `json:"dynamics"`
	Stereo   float64 `json:"stereo"`
	Clarity  float64 `json:"clarity"`
}
