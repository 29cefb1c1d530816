package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	pkgerrors "github.com/shahzroux/masterforge/pkg/errors"
	"github.com/shahzroux/masterforge/pkg/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Executor runs the ffmpeg and ffprobe binaries
type Executor struct {
	ffmpegPath  string
	ffprobePath string
	log         *logger.Logger
}

// ExecutorConfig holds configuration for the FFmpeg executor
type ExecutorConfig struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *logger.Logger
}

// NewExecutor resolves the binaries. A missing ffmpeg is an error; a missing
// ffprobe only disables Probe.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	ffmpegPath := cfg.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	resolved, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return nil, pkgerrors.NewFFmpegError(fmt.Sprintf("ffmpeg not found (%s)", ffmpegPath), nil, -1, "", err)
	}

	ffprobePath := cfg.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if p, err := exec.LookPath(ffprobePath); err == nil {
		ffprobePath = p
	} else {
		ffprobePath = ""
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Executor{
		ffmpegPath:  resolved,
		ffprobePath: ffprobePath,
		log:         log,
	}, nil
}

// Path returns the resolved ffmpeg binary
func (e *Executor) Path() string { return e.ffmpegPath }

// Execute runs ffmpeg with the given arguments and returns its stdout
func (e *Executor) Execute(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Debug("executing ffmpeg",
		zap.Strings("args", args),
	)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, pkgerrors.NewFFmpegError("ffmpeg execution failed", args, exitCode(err), stderr.String(), err)
	}

	return stdout.Bytes(), nil
}

// ProbeResult is the subset of ffprobe output the decoders need
type ProbeResult struct {
	FormatName string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   float64
}

type probeJSON struct {
	Streams []struct {
		CodecType        string `json:"codec_type"`
		SampleRate       string `json:"sample_rate"`
		Channels         int    `json:"channels"`
		BitsPerSample    int    `json:"bits_per_sample"`
		BitsPerRawSample string `json:"bits_per_raw_sample"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe and returns the first audio stream's layout
func (e *Executor) Probe(ctx context.Context, inputPath string) (*ProbeResult, error) {
	if e.ffprobePath == "" {
		return nil, pkgerrors.NewFFmpegError("ffprobe not found", nil, -1, "", exec.ErrNotFound)
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, pkgerrors.NewFFmpegError("ffprobe execution failed", args, exitCode(err), stderr.String(), err)
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (*ProbeResult, error) {
	var raw probeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, pkgerrors.NewFFmpegError("unreadable ffprobe output", nil, 0, "", err)
	}
	for _, s := range raw.Streams {
		if s.CodecType != "audio" {
			continue
		}
		rate, err := strconv.Atoi(s.SampleRate)
		if err != nil || rate <= 0 || s.Channels <= 0 {
			return nil, pkgerrors.NewFFmpegError("ffprobe reported an invalid audio stream", nil, 0, "", err)
		}
		bits := s.BitsPerSample
		if bits == 0 {
			bits, _ = strconv.Atoi(s.BitsPerRawSample)
		}
		duration, _ := strconv.ParseFloat(raw.Format.Duration, 64)
		return &ProbeResult{
			FormatName: raw.Format.FormatName,
			SampleRate: rate,
			Channels:   s.Channels,
			BitDepth:   bits,
			Duration:   duration,
		}, nil
	}
	return nil, pkgerrors.NewFFmpegError("no audio stream", nil, 0, "", nil)
}

// Process is a running ffmpeg with a writable stdin
type Process struct {
	cmd    *exec.Cmd
	args   []string
	stdin  io.WriteCloser
	stderr bytes.Buffer

	waitOnce sync.Once
	waitErr  error
}

// Start launches ffmpeg with stdout copied to out. The caller feeds stdin and
// must call Wait.
func (e *Executor) Start(ctx context.Context, args []string, out io.Writer) (*Process, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	p := &Process{cmd: cmd, args: args}
	cmd.Stdout = out
	cmd.Stderr = &p.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, pkgerrors.NewFFmpegError("failed to open ffmpeg stdin", args, -1, "", err)
	}
	p.stdin = stdin

	e.log.Debug("starting ffmpeg",
		zap.Strings("args", args),
	)

	if err := cmd.Start(); err != nil {
		return nil, pkgerrors.NewFFmpegError("failed to start ffmpeg", args, -1, "", err)
	}
	return p, nil
}

// Write sends bytes to ffmpeg's stdin
func (p *Process) Write(b []byte) (int, error) {
	return p.stdin.Write(b)
}

// Wait closes stdin and waits for ffmpeg to exit. It is safe to call more than once.
func (p *Process) Wait() error {
	p.waitOnce.Do(func() {
		closeErr := p.stdin.Close()
		if errors.Is(closeErr, io.ErrClosedPipe) || errors.Is(closeErr, os.ErrClosed) {
			closeErr = nil
		}
		var runErr error
		if err := p.cmd.Wait(); err != nil {
			runErr = pkgerrors.NewFFmpegError("ffmpeg exited with an error", p.args, exitCode(err), p.stderr.String(), err)
		}
		p.waitErr = multierr.Combine(runErr, closeErr)
	})
	return p.waitErr
}

// Stderr returns what ffmpeg has written to stderr so far. Only stable after Wait.
func (p *Process) Stderr() string { return p.stderr.String() }

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
