// Package spectrogram derives the companion image for a synthesized waveform.
//
// ffmpeg renders an oversized picture which is then checked for a sane PNG
// chunk layout and downsampled to the display size, so the image served to
// clients never depends on ffmpeg's own scaler.
package spectrogram

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"speechgen/pkg/ffmpeg"
	"speechgen/pkg/tools"

	"github.com/disintegration/imaging"
	pngstruct "github.com/dsoprea/go-png-image-structure"
)

type Config struct {
	Disabled     bool `yaml:"disabled" env:"DISABLED"`
	Width        int  `yaml:"width" env:"WIDTH"`
	Height       int  `yaml:"height" env:"HEIGHT"`
	RenderWidth  int  `yaml:"render_width" env:"RENDER_WIDTH"`
	RenderHeight int  `yaml:"render_height" env:"RENDER_HEIGHT"`
}

func (c *Config) Defaults() {
	if c.Width == 0 {
		c.Width = 1024
	}
	if c.Height == 0 {
		c.Height = 512
	}
	if c.RenderWidth == 0 {
		c.RenderWidth = c.Width * 2
	}
	if c.RenderHeight == 0 {
		c.RenderHeight = c.Height * 2
	}
}

// Painter draws a raw spectrogram picture of inputPath into outputPath.
type Painter interface {
	SpectrogramPath(ctx context.Context, inputPath, outputPath string, width, height int) error
	TmpPath(ext string) string
}

var _ Painter = (*ffmpeg.Client)(nil)

type Renderer struct {
	cfg     *Config
	painter Painter
}

func New(cfg *Config, painter Painter) *Renderer {
	cfg.Defaults()

	return &Renderer{
		cfg:     cfg,
		painter: painter,
	}
}

func (r *Renderer) Name() string {
	return fmt.Sprintf("ffmpeg-showspectrumpic-log-%dx%d", r.cfg.Width, r.cfg.Height)
}

// Render writes the spectrogram of wavPath to pngPath. On error pngPath does
// not exist.
func (r *Renderer) Render(ctx context.Context, wavPath, pngPath string) (err error) {
	rawPath := r.painter.TmpPath(".png")
	defer func() {
		_ = tools.RemoveIfExists(rawPath)
	}()

	if err := r.painter.SpectrogramPath(ctx, wavPath, rawPath, r.cfg.RenderWidth, r.cfg.RenderHeight); err != nil {
		return err
	}

	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw spectrogram: %w", err)
	}

	if err := checkPNG(raw); err != nil {
		return err
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode raw spectrogram: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tools.RemoveIfExists(pngPath)
		}
	}()

	dst := imaging.Fit(img, r.cfg.Width, r.cfg.Height, imaging.Lanczos)
	if err := imaging.Save(dst, pngPath); err != nil {
		return fmt.Errorf("save spectrogram: %w", err)
	}

	return nil
}

func checkPNG(data []byte) error {
	mc, err := pngstruct.NewPngMediaParser().ParseBytes(data)
	if err != nil {
		return fmt.Errorf("failed to parse png: %w", err)
	}

	cs, ok := mc.(*pngstruct.ChunkSlice)
	if !ok {
		return fmt.Errorf("unexpected png media context %T", mc)
	}

	index := cs.Index()
	for _, chunkType := range []string{"IHDR", "IDAT", "IEND"} {
		if _, found := index[chunkType]; !found {
			return fmt.Errorf("png has no %s chunk", chunkType)
		}
	}

	return nil
}
