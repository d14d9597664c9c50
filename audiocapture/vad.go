package audiocapture

import "time"

const (
	// DefaultFrame is the analysis window for voice activity detection.
	DefaultFrame = 20 * time.Millisecond

	// DefaultSpeechPad is kept on both sides of detected speech so word
	// onsets and trailing consonants survive trimming.
	DefaultSpeechPad = 200 * time.Millisecond
)

// frameBytes converts d to a byte count aligned to whole sample frames.
func frameBytes(f Format, d time.Duration) int {
	align := 2 * f.Channels
	if align <= 0 {
		align = 2
	}
	n := int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
	n -= n % align
	if n < align {
		n = align
	}
	return n
}

// SpeechBounds returns the byte range [start, end) spanning the first to the
// last DefaultFrame window whose RMS reaches threshold. ok is false when no
// window does.
func SpeechBounds(pcm []byte, f Format, threshold float64) (start, end int, ok bool) {
	frame := frameBytes(f, DefaultFrame)
	start, end = -1, -1
	for off := 0; off < len(pcm); off += frame {
		hi := min(off+frame, len(pcm))
		if IsSilent(pcm[off:hi], threshold) {
			continue
		}
		if start < 0 {
			start = off
		}
		end = hi
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// TrimSilence drops leading and trailing silence from pcm, keeping pad of
// audio around the detected speech. It returns nil when pcm holds no speech.
// A short burst inside a long quiet recording is kept even when the
// recording's overall RMS is below threshold.
func TrimSilence(pcm []byte, f Format, threshold float64, pad time.Duration) []byte {
	start, end, ok := SpeechBounds(pcm, f, threshold)
	if !ok {
		return nil
	}
	p := 0
	if pad > 0 {
		p = frameBytes(f, pad)
	}
	return pcm[max(0, start-p):min(len(pcm), end+p)]
}
