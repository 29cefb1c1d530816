package model

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ExportFormat selects the output bitstream
type ExportFormat string

const (
	FormatWAV16  ExportFormat = "wav16"
	FormatWAV24  ExportFormat = "wav24"
	FormatWAV32F ExportFormat = "wav32f"
	FormatMP3    ExportFormat = "mp3"
)

// MP3Bitrate is the fixed MP3 export bitrate in kbps
const MP3Bitrate = 320

// MP3SampleRates are the MPEG-1 Layer III rates, the only ones that carry MP3Bitrate
var MP3SampleRates = []int{32000, 44100, 48000}

// SupportsSampleRate reports whether f can be exported at rate Hz. WAV takes any
// positive rate; MP3 is limited to MP3SampleRates.
func (f ExportFormat) SupportsSampleRate(rate int) bool {
	if f == FormatMP3 {
		return slices.Contains(MP3SampleRates, rate)
	}
	return rate > 0
}

// DefaultExportSampleRate is used when a request leaves SampleRate at zero
const DefaultExportSampleRate = 44100

// ParseExportFormat maps a user string to a format
func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatWAV16, FormatWAV24, FormatWAV32F, FormatMP3:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want wav16, wav24, wav32f or mp3)", s)
	}
}

// BitDepth returns the PCM bit depth of a WAV format, or 16 for MP3 input PCM
func (f ExportFormat) BitDepth() int {
	switch f {
	case FormatWAV24:
		return 24
	case FormatWAV32F:
		return 32
	default:
		return 16
	}
}

// IsWAV reports whether f produces a RIFF/WAVE stream
func (f ExportFormat) IsWAV() bool {
	return f == FormatWAV16 || f == FormatWAV24 || f == FormatWAV32F
}

// ExportRequest is built per export action and consumed once
type ExportRequest struct {
	Format     ExportFormat
	SampleRate int
	BaseName   string
}

// Filename returns {base}_mastered_{N}bit_{rate}k.wav or {base}_mastered_320kbps.mp3
func (r ExportRequest) Filename() string {
	base := strings.TrimSpace(r.BaseName)
	if base == "" {
		base = "track"
	}
	if r.Format == FormatMP3 {
		return fmt.Sprintf("%s_mastered_%dkbps.mp3", base, MP3Bitrate)
	}
	rate := r.SampleRate
	if rate <= 0 {
		rate = DefaultExportSampleRate
	}
	khz := strconv.FormatFloat(float64(rate)/1000, 'f', -1, 64)
	return fmt.Sprintf("%s_mastered_%dbit_%sk.wav", base, r.Format.BitDepth(), khz)
}

// ExportResult is the encoded blob plus what it contains
type ExportResult struct {
	Data       []byte
	Filename   string
	Format     ExportFormat
	SampleRate int
	Channels   int
	Frames     int
	Duration   time.Duration
}
