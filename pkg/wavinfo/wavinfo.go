// Package wavinfo reads WAV headers to confirm a synthesized file is playable.
package wavinfo

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

var (
	ErrEmpty   = errors.New("wav file is empty")
	ErrInvalid = errors.New("not a valid wav file")
)

type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	Size       int64
}

func Inspect(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat wav: %w", err)
	}

	if stat.Size() == 0 {
		return nil, ErrEmpty
	}

	d := wav.NewDecoder(f)
	if d == nil || !d.IsValidFile() {
		return nil, ErrInvalid
	}

	duration, err := d.Duration()
	if err != nil {
		return nil, fmt.Errorf("wav duration: %w", err)
	}

	return &Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   duration,
		Size:       stat.Size(),
	}, nil
}
