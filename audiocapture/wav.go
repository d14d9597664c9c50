package audiocapture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DefaultSilenceThreshold is the RMS level, relative to full scale, under
// which a recording is treated as silent.
const DefaultSilenceThreshold = 0.01

// ErrOddLength is returned when a PCM payload does not hold whole samples.
var ErrOddLength = errors.New("audiocapture: pcm length is not a multiple of 2")

// Samples decodes s16le PCM into sample values.
func Samples(pcm []byte) ([]int, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return out, nil
}

// EncodeWAV wraps s16le PCM into a WAV container.
// The encoder needs a seekable writer, so the payload is staged in a temp
// file that is always removed before returning.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	samples, err := Samples(pcm)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "murmur-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	enc := wav.NewEncoder(tmp, f.SampleRate, 16, f.Channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: f.Channels,
			SampleRate:  f.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("read temp wav: %w", err)
	}
	return data, nil
}

// RMS returns the root mean square of s16le PCM normalized to [0, 1].
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / math.MaxInt16
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// IsSilent reports whether pcm is empty or its RMS level is below threshold.
func IsSilent(pcm []byte, threshold float64) bool {
	if len(pcm) < 2 {
		return true
	}
	return RMS(pcm) < threshold
}
