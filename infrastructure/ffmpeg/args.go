package ffmpeg

import (
	"fmt"
	"strconv"
)

// ArgsBuilder assembles an ffmpeg command line
type ArgsBuilder struct {
	args []string
}

// NewArgsBuilder starts a quiet, non-interactive command line
func NewArgsBuilder() *ArgsBuilder {
	return &ArgsBuilder{args: []string{"-hide_banner", "-nostdin", "-loglevel", "error"}}
}

// RawInput reads headerless PCM of the given sample format from stdin
func (b *ArgsBuilder) RawInput(sampleFormat string, sampleRate, channels int) *ArgsBuilder {
	b.args = append(b.args,
		"-f", sampleFormat,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
	)
	return b
}

// Input reads from a file
func (b *ArgsBuilder) Input(path string) *ArgsBuilder {
	b.args = append(b.args, "-i", path)
	return b
}

// AudioOnly drops video, subtitle and data streams
func (b *ArgsBuilder) AudioOnly() *ArgsBuilder {
	b.args = append(b.args, "-vn", "-sn", "-dn")
	return b
}

// Codec selects the audio encoder, with a constant bitrate when kbps > 0
func (b *ArgsBuilder) Codec(codec string, kbps int) *ArgsBuilder {
	b.args = append(b.args, "-c:a", codec)
	if kbps > 0 {
		b.args = append(b.args, "-b:a", fmt.Sprintf("%dk", kbps))
	}
	return b
}

// Output writes the given container format to stdout
func (b *ArgsBuilder) Output(format string) *ArgsBuilder {
	b.args = append(b.args, "-f", format, "pipe:1")
	return b
}

// Build returns a copy of the arguments
func (b *ArgsBuilder) Build() []string {
	out := make([]string, len(b.args))
	copy(out, b.args)
	return out
}

// MP3EncodeArgs reads s16le PCM on stdin and writes a CBR MP3 stream on stdout
func MP3EncodeArgs(sampleRate, channels, kbps int) []string {
	return NewArgsBuilder().
		RawInput("s16le", sampleRate, channels).
		Codec("libmp3lame", kbps).
		Output("mp3").
		Build()
}

// DecodeArgs decodes the first audio stream of path to interleaved f32le on stdout
// at its native rate and channel count
func DecodeArgs(path string) []string {
	return NewArgsBuilder().
		Input(path).
		AudioOnly().
		Codec("pcm_f32le", 0).
		Output("f32le").
		Build()
}
