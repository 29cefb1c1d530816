package ffmpeg

import (
	"context"
	"encoding/binary"
	"io"
	"strings"

	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"go.uber.org/multierr"
)

// MP3Backend encodes MP3 with ffmpeg's libmp3lame, one process per stream
type MP3Backend struct {
	exec *Executor
}

// NewMP3Backend wraps an executor
func NewMP3Backend(exec *Executor) *MP3Backend {
	return &MP3Backend{exec: exec}
}

// NewStream starts an encoder process writing the MP3 bitstream to out
func (b *MP3Backend) NewStream(ctx context.Context, sampleRate, channels, kbps int, out io.Writer) (ports.MP3Stream, error) {
	if channels < 1 || channels > 2 {
		return nil, pkgerrors.NewInvalidParameterError("channels", channels, "MP3 supports mono or stereo")
	}
	proc, err := b.exec.Start(ctx, MP3EncodeArgs(sampleRate, channels, kbps), out)
	if err != nil {
		return nil, err
	}
	return &mp3Stream{proc: proc, channels: channels}, nil
}

type mp3Stream struct {
	proc     *Process
	channels int
	scratch  []byte
}

// EncodeFrame interleaves one block as little-endian s16 and pipes it to ffmpeg
func (s *mp3Stream) EncodeFrame(left, right []int16) error {
	need := len(left) * 2 * s.channels
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	b := s.scratch[:need]

	off := 0
	for i, l := range left {
		binary.LittleEndian.PutUint16(b[off:], uint16(l))
		off += 2
		if s.channels == 2 {
			var r int16
			if i < len(right) {
				r = right[i]
			}
			binary.LittleEndian.PutUint16(b[off:], uint16(r))
			off += 2
		}
	}

	if _, err := s.proc.Write(b); err != nil {
		// a broken pipe means ffmpeg already exited; its exit status says why
		return classify(multierr.Combine(s.proc.Wait(), err), s.proc.Stderr())
	}
	return nil
}

// Flush closes ffmpeg's input and waits for the trailing frames
func (s *mp3Stream) Flush() error {
	if err := s.proc.Wait(); err != nil {
		return classify(err, s.proc.Stderr())
	}
	return nil
}

// classify turns a missing libmp3lame build into EncodingUnavailable so it is
// not retried
func classify(err error, stderr string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(stderr, "Unknown encoder") || strings.Contains(stderr, "Encoder not found") {
		return pkgerrors.NewEncodingUnavailableError(string(model.FormatMP3), err)
	}
	return err
}

var _ ports.MP3Backend = (*MP3Backend)(nil)
