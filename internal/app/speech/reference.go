package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"speechgen/pkg/tools"
)

// ReferenceTrimmer rewrites an uploaded clip into a bounded mono wav.
type ReferenceTrimmer interface {
	TrimToWavPath(ctx context.Context, inputPath, outputPath string, maxDuration time.Duration) error
}

// reference is the voice clip handed to the engine. Only temp files created
// from uploads are ever removed; the default sample is left alone.
type reference struct {
	path    string
	temp    bool
	removed bool
}

func (r *reference) cleanup(logger *slog.Logger) {
	if r == nil || !r.temp || r.removed {
		return
	}

	r.removed = true

	if err := tools.RemoveIfExists(r.path); err != nil {
		logger.Error("failed to remove temp speaker file", "path", r.path, "err", err)
	}
}

func (g *Generator) tmpDir() string {
	if g.cfg.TmpDir == "" {
		return os.TempDir()
	}
	return g.cfg.TmpDir
}

func (g *Generator) defaultReference() (*reference, error) {
	f, err := os.Open(g.cfg.DefaultSpeakerWav)
	if err != nil {
		return nil, newErr(KindMissingDefaultSpeaker, fmt.Errorf("%w: %w", ErrDefaultSpeakerMissing, err))
	}
	defer f.Close()

	if info, err := f.Stat(); err != nil || !info.Mode().IsRegular() {
		return nil, newErr(KindMissingDefaultSpeaker, ErrDefaultSpeakerMissing)
	}

	return &reference{path: g.cfg.DefaultSpeakerWav}, nil
}

// stageReference persists an upload to a fresh temp .wav, or falls back to
// the default sample when nothing (or an empty file) was uploaded.
func (g *Generator) stageReference(ctx context.Context, upload io.Reader, logger *slog.Logger) (*reference, error) {
	if upload == nil {
		return g.defaultReference()
	}

	tmp, err := os.CreateTemp(g.tmpDir(), "speaker-*.wav")
	if err != nil {
		return nil, newErr(KindStaging, fmt.Errorf("failed to create temp speaker file: %w", err))
	}

	ref := &reference{path: tmp.Name(), temp: true}

	n, err := io.Copy(tmp, io.LimitReader(upload, g.cfg.MaxUploadBytes+1))
	closeErr := tmp.Close()

	switch {
	case err != nil:
		ref.cleanup(logger)
		return nil, newErr(KindStaging, fmt.Errorf("failed to write temp speaker file: %w", err))
	case closeErr != nil:
		ref.cleanup(logger)
		return nil, newErr(KindStaging, fmt.Errorf("failed to close temp speaker file: %w", closeErr))
	case n > g.cfg.MaxUploadBytes:
		ref.cleanup(logger)
		return nil, newErr(KindInvalidInput, fmt.Errorf("%w: limit is %d bytes", ErrUploadTooLarge, g.cfg.MaxUploadBytes))
	case n == 0:
		ref.cleanup(logger)
		logger.Debug("empty speaker upload, using default reference")

		return g.defaultReference()
	}

	if g.trimmer == nil || g.cfg.MaxReferenceDuration <= 0 {
		return ref, nil
	}

	trimmed, err := g.trimReference(ctx, ref, logger)
	if err != nil {
		ref.cleanup(logger)
		return nil, err
	}

	return trimmed, nil
}

func (g *Generator) trimReference(ctx context.Context, ref *reference, logger *slog.Logger) (*reference, error) {
	out, err := os.CreateTemp(g.tmpDir(), "speaker-trim-*.wav")
	if err != nil {
		return nil, newErr(KindStaging, fmt.Errorf("failed to create trimmed speaker file: %w", err))
	}
	_ = out.Close()

	trimmed := &reference{path: out.Name(), temp: true}

	if err := g.trimmer.TrimToWavPath(ctx, ref.path, trimmed.path, g.cfg.MaxReferenceDuration); err != nil {
		trimmed.cleanup(logger)
		return nil, newErr(KindStaging, fmt.Errorf("failed to prepare speaker reference: %w", err))
	}

	ref.cleanup(logger)

	return trimmed, nil
}
