package speech_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"speechgen/internal/app/speech"
	"speechgen/pkg/ai"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []ai.SynthesisRequest
	// seen holds the reference clip content as the engine saw it
	seen [][]byte

	err   error
	block bool
}

func (f *fakeSynth) SynthesizeToFile(ctx context.Context, req *ai.SynthesisRequest, outputPath string) error {
	ref, readErr := os.ReadFile(req.SpeakerWavPath)

	f.mu.Lock()
	f.calls = append(f.calls, *req)
	f.seen = append(f.seen, ref)
	f.mu.Unlock()

	if readErr != nil {
		return fmt.Errorf("reference not readable: %w", readErr)
	}

	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}

	if f.err != nil {
		// a crashing engine can leave garbage behind
		_ = os.WriteFile(outputPath, []byte("partial"), 0o644)
		return f.err
	}

	return os.WriteFile(outputPath, []byte("RIFF....WAVEfmt fake audio"), 0o644)
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

type fakeRenderer struct {
	err error
}

func (f *fakeRenderer) Render(_ context.Context, wavPath, pngPath string) error {
	if f.err != nil {
		_ = os.WriteFile(pngPath, []byte("half a png"), 0o644)
		return f.err
	}

	if _, err := os.Stat(wavPath); err != nil {
		return err
	}

	return os.WriteFile(pngPath, []byte("\x89PNG fake"), 0o644)
}

type fakeTrimmer struct {
	err     error
	gotMax  time.Duration
	content []byte
}

func (f *fakeTrimmer) TrimToWavPath(_ context.Context, _, outputPath string, maxDuration time.Duration) error {
	f.gotMax = maxDuration
	if f.err != nil {
		return f.err
	}

	return os.WriteFile(outputPath, f.content, 0o644)
}

type env struct {
	cfg       *speech.Config
	outputDir string
	tmpDir    string
}

func newEnv(t *testing.T, withDefault bool) *env {
	t.Helper()

	root := t.TempDir()

	e := &env{
		outputDir: filepath.Join(root, "generated_audio"),
		tmpDir:    filepath.Join(root, "tmp"),
	}
	require.NoError(t, os.MkdirAll(e.outputDir, 0o755))
	require.NoError(t, os.MkdirAll(e.tmpDir, 0o755))

	defaultWav := filepath.Join(root, "dataset", "wavs", "1.wav")
	if withDefault {
		require.NoError(t, os.MkdirAll(filepath.Dir(defaultWav), 0o755))
		require.NoError(t, os.WriteFile(defaultWav, []byte("default speaker"), 0o644))
	}

	e.cfg = &speech.Config{
		OutputDir:         e.outputDir,
		DefaultSpeakerWav: defaultWav,
		TmpDir:            e.tmpDir,
	}
	e.cfg.Defaults()

	return e
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names
}

func TestGenerateHelloWorld(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	synth := &fakeSynth{}
	gen := speech.NewGenerator(e.cfg, synth, &fakeRenderer{}, nil)

	res, err := gen.Generate(context.Background(), &speech.Request{Text: "Hello world", Language: "en"})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(res.AudioFile, ".wav"))
	assert.Equal(t, res.Stem+".wav", res.AudioFile)
	assert.Equal(t, res.Stem+".png", res.SpectrogramFile)
	assert.NoError(t, res.SpectrogramErr)

	info, err := os.Stat(filepath.Join(e.outputDir, res.AudioFile))
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = os.Stat(filepath.Join(e.outputDir, res.SpectrogramFile))
	require.NoError(t, err)

	require.Len(t, synth.calls, 1)
	assert.Equal(t, "Hello world", synth.calls[0].Text)
	assert.Equal(t, "en", synth.calls[0].Language)
	assert.Equal(t, e.cfg.DefaultSpeakerWav, synth.calls[0].SpeakerWavPath)

	// default sample is never removed
	_, err = os.Stat(e.cfg.DefaultSpeakerWav)
	require.NoError(t, err)
}

func TestGenerateDefaultsLanguage(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	synth := &fakeSynth{}
	gen := speech.NewGenerator(e.cfg, synth, nil, nil)

	res, err := gen.Generate(context.Background(), &speech.Request{Text: "  Bonjour  ", Language: " "})
	require.NoError(t, err)
	require.Equal(t, "en", res.Language)
	require.Equal(t, "Bonjour", synth.calls[0].Text)

	res, err = gen.Generate(context.Background(), &speech.Request{Text: "你好", Language: "ZH-CN"})
	require.NoError(t, err)
	require.Equal(t, "zh-cn", res.Language)

	// spectrogram step disabled
	require.Empty(t, res.SpectrogramFile)
	require.NoError(t, res.SpectrogramErr)
}

func TestGenerateUploadedReferenceIsRemoved(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		synth   *fakeSynth
		wantErr bool
	}{
		{name: "success", synth: &fakeSynth{}},
		{name: "synthesis failure", synth: &fakeSynth{err: errors.New("CUDA out of memory")}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(t, true)
			gen := speech.NewGenerator(e.cfg, tc.synth, &fakeRenderer{}, nil)

			clip := []byte("RIFF uploaded clip")
			_, err := gen.Generate(context.Background(), &speech.Request{
				Text:      "Hello world",
				Reference: bytes.NewReader(clip),
			})

			if tc.wantErr {
				require.Error(t, err)
				require.Equal(t, speech.KindSynthesis, speech.ErrKind(err))
				require.Equal(t, "CUDA out of memory", err.Error())
				require.Empty(t, dirEntries(t, e.outputDir), "no partial artifacts")
			} else {
				require.NoError(t, err)
			}

			require.Len(t, tc.synth.calls, 1)
			refPath := tc.synth.calls[0].SpeakerWavPath
			require.True(t, strings.HasSuffix(refPath, ".wav"))
			require.Equal(t, e.tmpDir, filepath.Dir(refPath))
			require.Equal(t, clip, tc.synth.seen[0])

			_, statErr := os.Stat(refPath)
			require.True(t, os.IsNotExist(statErr), "temp reference must be removed")
			require.Empty(t, dirEntries(t, e.tmpDir))

			_, statErr = os.Stat(e.cfg.DefaultSpeakerWav)
			require.NoError(t, statErr)
		})
	}
}

func TestGenerateMissingDefaultSpeaker(t *testing.T) {
	t.Parallel()

	e := newEnv(t, false)
	synth := &fakeSynth{}
	gen := speech.NewGenerator(e.cfg, synth, &fakeRenderer{}, nil)

	_, err := gen.Generate(context.Background(), &speech.Request{Text: "Hello world"})
	require.Error(t, err)
	require.Equal(t, speech.KindMissingDefaultSpeaker, speech.ErrKind(err))
	require.ErrorIs(t, err, speech.ErrDefaultSpeakerMissing)

	require.Zero(t, synth.callCount())
	require.Empty(t, dirEntries(t, e.outputDir))
}

func TestGenerateEmptyUploadUsesDefault(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	synth := &fakeSynth{}
	gen := speech.NewGenerator(e.cfg, synth, nil, nil)

	_, err := gen.Generate(context.Background(), &speech.Request{Text: "hi", Reference: bytes.NewReader(nil)})
	require.NoError(t, err)
	require.Equal(t, e.cfg.DefaultSpeakerWav, synth.calls[0].SpeakerWavPath)
	require.Empty(t, dirEntries(t, e.tmpDir))
}

func TestGenerateSpectrogramFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	gen := speech.NewGenerator(e.cfg, &fakeSynth{}, &fakeRenderer{err: errors.New("ffmpeg missing")}, nil)

	res, err := gen.Generate(context.Background(), &speech.Request{Text: "Hello world", Language: "en"})
	require.NoError(t, err)

	require.Empty(t, res.SpectrogramFile)
	require.Error(t, res.SpectrogramErr)
	require.Equal(t, speech.KindPostProcessing, speech.ErrKind(res.SpectrogramErr))
	require.False(t, speech.ErrKind(res.SpectrogramErr).Fatal())

	require.Equal(t, []string{res.AudioFile}, dirEntries(t, e.outputDir))
}

func TestGenerateValidation(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	e.cfg.MaxTextRunes = 5
	synth := &fakeSynth{}
	gen := speech.NewGenerator(e.cfg, synth, nil, nil)

	cases := []struct {
		name string
		req  *speech.Request
		want error
	}{
		{name: "nil request", req: nil, want: speech.ErrTextRequired},
		{name: "empty text", req: &speech.Request{}, want: speech.ErrTextRequired},
		{name: "whitespace text", req: &speech.Request{Text: " \n\t "}, want: speech.ErrTextRequired},
		{name: "too long", req: &speech.Request{Text: "abcdef"}, want: speech.ErrTextTooLong},
	}

	for _, tc := range cases {
		_, err := gen.Generate(context.Background(), tc.req)
		require.ErrorIs(t, err, tc.want, tc.name)
		require.Equal(t, speech.KindInvalidInput, speech.ErrKind(err), tc.name)
	}

	// runes, not bytes
	_, err := gen.Generate(context.Background(), &speech.Request{Text: "ñññññ"})
	require.NoError(t, err)

	require.Equal(t, 1, synth.callCount())
}

func TestGenerateUploadTooLarge(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	e.cfg.MaxUploadBytes = 8
	synth := &fakeSynth{}
	gen := speech.NewGenerator(e.cfg, synth, nil, nil)

	_, err := gen.Generate(context.Background(), &speech.Request{
		Text:      "hi",
		Reference: strings.NewReader("123456789"),
	})
	require.ErrorIs(t, err, speech.ErrUploadTooLarge)
	require.Equal(t, speech.KindInvalidInput, speech.ErrKind(err))
	require.Zero(t, synth.callCount())
	require.Empty(t, dirEntries(t, e.tmpDir))

	_, err = gen.Generate(context.Background(), &speech.Request{
		Text:      "hi",
		Reference: strings.NewReader("12345678"),
	})
	require.NoError(t, err)
}

func TestGenerateTrimsReference(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	e.cfg.MaxReferenceDuration = 20 * time.Second

	synth := &fakeSynth{}
	trimmer := &fakeTrimmer{content: []byte("trimmed clip")}
	gen := speech.NewGenerator(e.cfg, synth, nil, trimmer)

	_, err := gen.Generate(context.Background(), &speech.Request{
		Text:      "hi",
		Reference: strings.NewReader("long original clip"),
	})
	require.NoError(t, err)

	require.Equal(t, 20*time.Second, trimmer.gotMax)
	require.Equal(t, []byte("trimmed clip"), synth.seen[0])
	require.Empty(t, dirEntries(t, e.tmpDir))
}

func TestGenerateTrimFailure(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	e.cfg.MaxReferenceDuration = 20 * time.Second

	synth := &fakeSynth{}
	gen := speech.NewGenerator(e.cfg, synth, nil, &fakeTrimmer{err: errors.New("invalid data found when processing input")})

	_, err := gen.Generate(context.Background(), &speech.Request{
		Text:      "hi",
		Reference: strings.NewReader("not audio"),
	})
	require.Equal(t, speech.KindStaging, speech.ErrKind(err))
	require.Zero(t, synth.callCount())
	require.Empty(t, dirEntries(t, e.tmpDir))
}

func TestGenerateSynthesisTimeout(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	e.cfg.SynthesisTimeout = 20 * time.Millisecond

	gen := speech.NewGenerator(e.cfg, &fakeSynth{block: true}, nil, nil)

	_, err := gen.Generate(context.Background(), &speech.Request{Text: "hi"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, speech.KindSynthesis, speech.ErrKind(err))
}

func TestGenerateConcurrentNamesAreUnique(t *testing.T) {
	t.Parallel()

	e := newEnv(t, true)
	gen := speech.NewGenerator(e.cfg, &fakeSynth{}, &fakeRenderer{}, nil)

	const workers = 32

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		names = make(map[string]struct{}, workers)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			res, err := gen.Generate(context.Background(), &speech.Request{
				Text:      fmt.Sprintf("request %d", i),
				Reference: strings.NewReader("clip"),
			})
			assert.NoError(t, err)
			if err != nil {
				return
			}

			mu.Lock()
			names[res.AudioFile] = struct{}{}
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	require.Len(t, names, workers)
	require.Len(t, dirEntries(t, e.outputDir), workers*2)
	require.Empty(t, dirEntries(t, e.tmpDir))
}

func TestErrKind(t *testing.T) {
	t.Parallel()

	require.Equal(t, speech.KindUnknown, speech.ErrKind(errors.New("plain")))
	require.Equal(t, speech.KindUnknown, speech.ErrKind(nil))

	wrapped := fmt.Errorf("handler: %w", &speech.Error{Kind: speech.KindSynthesis, Err: errors.New("boom")})
	require.Equal(t, speech.KindSynthesis, speech.ErrKind(wrapped))
	require.True(t, speech.KindSynthesis.Fatal())
	require.Equal(t, "synthesis", speech.KindSynthesis.String())
}
