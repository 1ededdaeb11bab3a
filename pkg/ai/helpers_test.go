package ai_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// toneWav returns the path and bytes of a short valid wav file.
func toneWav(t *testing.T) (string, []byte) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")

	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 24000, 16, 1, 1)

	data := make([]int, 2400)
	for i := range data {
		data[i] = (i%48 - 24) * 1000
	}

	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 24000},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	return path, content
}
