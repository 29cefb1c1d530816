package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shahzroux/masterforge"
)

func main() {
	// ── Graceful shutdown via signal ──────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Progress channel ──────────────────────────────────────────────────
	progressCh := make(chan masterforge.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for upd := range progressCh {
			fmt.Printf("[%s] stage=%-10s %.0f%%  %s\n",
				upd.JobID, upd.Stage, upd.Percent, upd.Message)
		}
	}()

	// ── Create engine ─────────────────────────────────────────────────────
	engine, err := masterforge.New(masterforge.Config{ProgressCh: progressCh})
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}
	defer func() {
		engine.Close()
		close(progressCh)
		<-done
	}()

	inputPath := os.Getenv("MASTERFORGE_INPUT")
	if inputPath == "" {
		inputPath = "/tmp/sample.wav"
	}

	// ── Example 1: Analyze ───────────────────────────────────────────────
	fmt.Println("\n── Example 1: Loudness Analysis ──")
	buf := analyzeExample(ctx, engine, inputPath)
	if buf == nil {
		return
	}

	// ── Example 2: Master and export for each platform ───────────────────
	fmt.Println("\n── Example 2: Platform Masters ──")
	platformExample(ctx, engine, buf)
}

func analyzeExample(ctx context.Context, e *masterforge.Engine, path string) *masterforge.PCMBuffer {
	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	buf, meta, err := e.Load(loadCtx, path)
	if err != nil {
		fmt.Printf("load failed: %v\n", err)
		return nil
	}
	m, err := e.Analyze(ctx, buf)
	if err != nil {
		fmt.Printf("analyze failed: %v\n", err)
		return nil
	}

	meters := e.Meters(buf, m)
	fmt.Printf("Input: %s %d Hz %d ch %s\n", meta.Format, meta.SampleRate, meta.Channels, meta.Duration)
	fmt.Printf("  Integrated: %.1f LUFS\n", m.IntegratedLUFS)
	fmt.Printf("  True peak : %.1f dBTP\n", m.TruePeakDB)
	fmt.Printf("  LRA       : %.1f LU\n", m.LRA)
	fmt.Printf("  Meters    : loudness=%.0f dynamics=%.0f stereo=%.0f clarity=%.0f\n",
		meters.Loudness, meters.Dynamics, meters.Stereo, meters.Clarity)
	return buf
}

func platformExample(ctx context.Context, e *masterforge.Engine, buf *masterforge.PCMBuffer) {
	formats := map[string]masterforge.ExportFormat{
		"spotify":    masterforge.FormatWAV16,
		"apple":      masterforge.FormatWAV24,
		"soundcloud": masterforge.FormatMP3,
	}
	for _, id := range []string{"spotify", "apple", "soundcloud"} {
		platform, err := masterforge.LookupPlatform(id)
		if err != nil {
			fmt.Printf("[%s] %v\n", id, err)
			continue
		}

		mastered, err := e.Master(ctx, buf, masterforge.WithPlatform(id))
		if err != nil {
			fmt.Printf("[%s] master failed: %v\n", id, err)
			continue
		}
		m, err := e.Analyze(ctx, mastered)
		if err != nil {
			fmt.Printf("[%s] analyze failed: %v\n", id, err)
			continue
		}

		res, err := e.Export(ctx, mastered, masterforge.ExportRequest{
			Format:   formats[id],
			BaseName: "example_" + id,
		})
		if err != nil {
			fmt.Printf("[%s] export failed: %v\n", id, err)
			continue
		}
		path, err := e.Save(ctx, res, os.TempDir())
		if err != nil {
			fmt.Printf("[%s] save failed: %v\n", id, err)
			continue
		}
		fmt.Printf("[%s] %.1f LUFS (gap %+.1f LU) -> %s\n",
			id, m.IntegratedLUFS, masterforge.GapToTarget(m, platform), path)
	}
}
