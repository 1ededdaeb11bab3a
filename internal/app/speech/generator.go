// Package speech runs one text-to-speech request from validated input to
// artifacts on disk: stage the reference voice, call the engine, derive the
// spectrogram, clean up.
package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"speechgen/pkg/ai"
	"speechgen/pkg/slg"
	"speechgen/pkg/tools"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

type Synthesizer interface {
	SynthesizeToFile(ctx context.Context, req *ai.SynthesisRequest, outputPath string) error
}

type SpectrogramRenderer interface {
	Render(ctx context.Context, wavPath, pngPath string) error
}

type Request struct {
	Text     string
	Language string
	// Reference is the uploaded voice clip, nil when none was sent.
	Reference io.Reader
}

type Result struct {
	Stem     string
	Language string

	AudioFile string
	AudioPath string

	// SpectrogramFile is empty when post processing failed or is disabled.
	SpectrogramFile string
	SpectrogramPath string
	SpectrogramErr  error
}

type Generator struct {
	cfg         *Config
	synth       Synthesizer
	spectrogram SpectrogramRenderer
	trimmer     ReferenceTrimmer
}

// NewGenerator wires the pipeline. spectrogram and trimmer may be nil to
// disable the respective step.
func NewGenerator(cfg *Config, synth Synthesizer, spectrogram SpectrogramRenderer, trimmer ReferenceTrimmer) *Generator {
	return &Generator{
		cfg:         cfg,
		synth:       synth,
		spectrogram: spectrogram,
		trimmer:     trimmer,
	}
}

func (g *Generator) OutputDir() string {
	return g.cfg.OutputDir
}

func enter(logger *slog.Logger, stage Stage) {
	logger.Debug("speech stage", "stage", stage.String())
}

func (g *Generator) Generate(ctx context.Context, req *Request) (res *Result, err error) {
	logger := slg.GetSlog(ctx).WithGroup("speech")
	enter(logger, StageReceived)

	defer func() {
		switch {
		case err != nil:
			metrics.Requests.WithLabelValues(ErrKind(err).String()).Inc()
		case res.SpectrogramErr != nil:
			metrics.Requests.WithLabelValues("degraded").Inc()
		default:
			metrics.Requests.WithLabelValues("ok").Inc()
		}
	}()

	enter(logger, StageValidatingInput)

	text, language, err := g.validate(req)
	if err != nil {
		return nil, err
	}

	enter(logger, StageStagingReference)

	ref, err := g.stageReference(ctx, req.Reference, logger)
	if err != nil {
		return nil, err
	}

	defer func() {
		enter(logger, StageCleanupReference)
		ref.cleanup(logger)
	}()

	stem := uuid.NewString()
	res = &Result{
		Stem:      stem,
		Language:  language,
		AudioFile: stem + ".wav",
	}
	res.AudioPath = filepath.Join(g.cfg.OutputDir, res.AudioFile)

	enter(logger, StageSynthesizing)

	if err := g.synthesize(ctx, &ai.SynthesisRequest{
		Text:           text,
		Language:       language,
		SpeakerWavPath: ref.path,
	}, res.AudioPath); err != nil {
		logger.Error("synthesis failed", "stem", stem, "language", language, "speaker", ref.path, "err", err)

		return nil, err
	}

	// the engine is done with the clip, no need to keep it through post processing
	ref.cleanup(logger)

	if g.spectrogram != nil {
		enter(logger, StagePostProcessing)
		g.postProcess(ctx, res, logger)
	}

	enter(logger, StageResponding)

	logger.Info("speech generated", "audio_file", res.AudioFile, "spectrogram_file", res.SpectrogramFile, "language", language)

	return res, nil
}

func (g *Generator) validate(req *Request) (string, string, error) {
	if req == nil {
		return "", "", newErr(KindInvalidInput, ErrTextRequired)
	}

	text := strings.TrimSpace(norm.NFC.String(req.Text))
	if text == "" {
		return "", "", newErr(KindInvalidInput, ErrTextRequired)
	}

	if g.cfg.MaxTextRunes > 0 {
		if n := utf8.RuneCountInString(text); n > g.cfg.MaxTextRunes {
			return "", "", newErr(KindInvalidInput, fmt.Errorf("%w: %d characters, limit is %d", ErrTextTooLong, n, g.cfg.MaxTextRunes))
		}
	}

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = g.cfg.DefaultLanguage
	}

	return text, language, nil
}

func (g *Generator) synthesize(ctx context.Context, req *ai.SynthesisRequest, outputPath string) error {
	if g.cfg.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.SynthesisTimeout)
		defer cancel()
	}

	start := time.Now()

	if err := g.synth.SynthesizeToFile(ctx, req, outputPath); err != nil {
		// engines promise not to leave partial output, but a crashed one can
		_ = tools.RemoveIfExists(outputPath)

		return newErr(KindSynthesis, err)
	}

	metrics.SynthesisTime.Observe(time.Since(start).Seconds())

	if !tools.FileExists(outputPath) {
		return newErr(KindSynthesis, fmt.Errorf("engine reported success but %s was not created", filepath.Base(outputPath)))
	}

	return nil
}

// postProcess never fails the request; a broken spectrogram only clears the field.
func (g *Generator) postProcess(ctx context.Context, res *Result, logger *slog.Logger) {
	pngFile := res.Stem + ".png"
	pngPath := filepath.Join(g.cfg.OutputDir, pngFile)

	if err := g.spectrogram.Render(ctx, res.AudioPath, pngPath); err != nil {
		_ = tools.RemoveIfExists(pngPath)

		metrics.SpectrogramFailures.Inc()
		logger.Warn("spectrogram generation failed", "audio_file", res.AudioFile, "err", err)

		res.SpectrogramErr = newErr(KindPostProcessing, err)

		return
	}

	res.SpectrogramFile = pngFile
	res.SpectrogramPath = pngPath
}
