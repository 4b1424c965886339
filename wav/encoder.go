package wav

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const encodeBitDepth = 16

// Encode writes mono samples in [-1, 1] as a 16-bit PCM WAV file in memory.
func Encode(samples []float64, sampleRate int) ([]byte, error) {
	ws := &seekBuffer{}
	if err := encodeTo(ws, samples, sampleRate); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// WriteWavFile writes mono samples as a 16-bit PCM WAV file at path.
func WriteWavFile(path string, samples []float64, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}
	if err := encodeTo(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeTo(w io.WriteSeeker, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	maxVal := float64(int(1)<<(encodeBitDepth-1) - 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		if math.IsNaN(s) {
			s = 0
		}
		s = math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(s * maxVal))
	}

	enc := wav.NewEncoder(w, sampleRate, encodeBitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: encodeBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize wav file: %w", err)
	}
	return nil
}

// seekBuffer is an in-memory io.WriteSeeker; the go-audio encoder seeks back
// to patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	s.pos = int(next)
	return next, nil
}
