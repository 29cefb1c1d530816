package mocks

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/shahzroux/masterforge/domain/model"
	"github.com/shahzroux/masterforge/domain/ports"
	"github.com/shahzroux/masterforge/pkg/progress"
)

// MockMP3Backend is a test double for ports.MP3Backend. By default every
// stream writes a 2-byte sync word plus the little-endian samples of each frame.
type MockMP3Backend struct {
	NewStreamFunc func(ctx context.Context, sampleRate, channels, kbps int, out io.Writer) (ports.MP3Stream, error)

	mu      sync.Mutex
	Streams []*MockMP3Stream
}

func (m *MockMP3Backend) NewStream(ctx context.Context, sampleRate, channels, kbps int, out io.Writer) (ports.MP3Stream, error) {
	if m.NewStreamFunc != nil {
		return m.NewStreamFunc(ctx, sampleRate, channels, kbps, out)
	}
	s := &MockMP3Stream{SampleRate: sampleRate, Channels: channels, Kbps: kbps, Out: out}
	m.mu.Lock()
	m.Streams = append(m.Streams, s)
	m.mu.Unlock()
	return s, nil
}

// LastStream returns the most recently opened stream, or nil
func (m *MockMP3Backend) LastStream() *MockMP3Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Streams) == 0 {
		return nil
	}
	return m.Streams[len(m.Streams)-1]
}

// MockMP3Stream is a test double for ports.MP3Stream
type MockMP3Stream struct {
	EncodeFrameFunc func(left, right []int16) error
	FlushFunc       func() error

	SampleRate int
	Channels   int
	Kbps       int
	Out        io.Writer

	FrameSizes []int
	Left       []int16
	Right      []int16
	Flushed    bool
}

func (s *MockMP3Stream) EncodeFrame(left, right []int16) error {
	s.FrameSizes = append(s.FrameSizes, len(left))
	s.Left = append(s.Left, left...)
	s.Right = append(s.Right, right...)
	if s.EncodeFrameFunc != nil {
		return s.EncodeFrameFunc(left, right)
	}
	if s.Out == nil {
		return nil
	}
	frame := []byte{0xFF, 0xFB}
	for _, v := range left {
		frame = binary.LittleEndian.AppendUint16(frame, uint16(v))
	}
	_, err := s.Out.Write(frame)
	return err
}

func (s *MockMP3Stream) Flush() error {
	s.Flushed = true
	if s.FlushFunc != nil {
		return s.FlushFunc()
	}
	return nil
}

// MockAnalyzer is a test double for ports.Analyzer
type MockAnalyzer struct {
	MeasureFunc func(ctx context.Context, buf *model.PCMBuffer) (model.LoudnessMeasurement, error)
}

func (m *MockAnalyzer) Measure(ctx context.Context, buf *model.PCMBuffer) (model.LoudnessMeasurement, error) {
	if m.MeasureFunc != nil {
		return m.MeasureFunc(ctx, buf)
	}
	return model.LoudnessMeasurement{
		IntegratedLUFS: -14,
		TruePeakDB:     -1,
		LRA:            6,
		Duration:       buf.DurationSeconds(),
		SampleRate:     buf.SampleRate(),
		Channels:       buf.NumChannels(),
	}, nil
}

// MockRenderer is a test double for ports.Renderer. By default it returns the
// input buffer and records the parameters it saw.
type MockRenderer struct {
	RenderFunc func(ctx context.Context, buf *model.PCMBuffer, params model.MasteringParams, reporter progress.Reporter) (*model.PCMBuffer, error)

	mu     sync.Mutex
	Params []model.MasteringParams
}

func (m *MockRenderer) Render(ctx context.Context, buf *model.PCMBuffer, params model.MasteringParams, reporter progress.Reporter) (*model.PCMBuffer, error) {
	m.mu.Lock()
	m.Params = append(m.Params, params)
	m.mu.Unlock()
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, buf, params, reporter)
	}
	return buf, nil
}

// MockResampler is a test double for ports.Resampler
type MockResampler struct {
	ResampleFunc func(ctx context.Context, buf *model.PCMBuffer, targetRate int) (*model.PCMBuffer, error)
	Rates        []int
}

func (m *MockResampler) Resample(ctx context.Context, buf *model.PCMBuffer, targetRate int) (*model.PCMBuffer, error) {
	m.Rates = append(m.Rates, targetRate)
	if m.ResampleFunc != nil {
		return m.ResampleFunc(ctx, buf, targetRate)
	}
	if buf.SampleRate() == targetRate {
		return buf, nil
	}
	channels := make([][]float64, buf.NumChannels())
	for c := range channels {
		channels[c] = buf.CopyChannel(c)
	}
	return model.NewPCMBuffer(targetRate, channels)
}

// MockEncoder is a test double for ports.Encoder
type MockEncoder struct {
	EncodeFunc func(ctx context.Context, buf *model.PCMBuffer, format model.ExportFormat) ([]byte, error)
	Formats    []model.ExportFormat
}

func (m *MockEncoder) Encode(ctx context.Context, buf *model.PCMBuffer, format model.ExportFormat) ([]byte, error) {
	m.Formats = append(m.Formats, format)
	if m.EncodeFunc != nil {
		return m.EncodeFunc(ctx, buf, format)
	}
	return []byte(format), nil
}

// MockStorageProvider is a test double for ports.StorageProvider
type MockStorageProvider struct {
	ExistsFunc    func(ctx context.Context, path string) (bool, error)
	SizeFunc      func(ctx context.Context, path string) (int64, error)
	RemoveFunc    func(ctx context.Context, path string) error
	WriteFileFunc func(ctx context.Context, path string, data []byte) error

	mu      sync.Mutex
	Written map[string][]byte
}

func (m *MockStorageProvider) Exists(ctx context.Context, path string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, path)
	}
	return true, nil
}

func (m *MockStorageProvider) Size(ctx context.Context, path string) (int64, error) {
	if m.SizeFunc != nil {
		return m.SizeFunc(ctx, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.Written[path])), nil
}

func (m *MockStorageProvider) Remove(ctx context.Context, path string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Written, path)
	return nil
}

func (m *MockStorageProvider) WriteFile(ctx context.Context, path string, data []byte) error {
	if m.WriteFileFunc != nil {
		return m.WriteFileFunc(ctx, path, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Written == nil {
		m.Written = make(map[string][]byte)
	}
	m.Written[path] = append([]byte(nil), data...)
	return nil
}

var (
	_ ports.MP3Backend      = (*MockMP3Backend)(nil)
	_ ports.MP3Stream       = (*MockMP3Stream)(nil)
	_ ports.Analyzer        = (*MockAnalyzer)(nil)
	_ ports.Renderer        = (*MockRenderer)(nil)
	_ ports.Resampler       = (*MockResampler)(nil)
	_ ports.Encoder         = (*MockEncoder)(nil)
	_ ports.StorageProvider = (*MockStorageProvider)(nil)
)
