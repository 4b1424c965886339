package wav

// Audio decoding
//
// Turns an uploaded byte stream into the mono PCM signal the pitch tracker
// works on:
//
// 1. RIFF/WAVE payloads are parsed with go-audio
// 2. Other containers (mp3, m4a, webm...) are piped through ffmpeg as s16le
// 3. Channels are averaged to mono
// 4. The signal is linearly resampled to the canonical rate
//
// A duration limit, when given, is enforced before the PCM payload is read:
// from the RIFF header for WAV, and by capping ffmpeg output with -t.

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"karaoke-score/apperrors"
	"karaoke-score/models"

	"github.com/go-audio/wav"
)

const (
	// DefaultSampleRate is the canonical rate every decoded signal is brought to.
	DefaultSampleRate = 22050
	defaultFFmpegPath = "ffmpeg"
	defaultTimeout    = 2 * time.Minute
	wavFormatPCM      = 1
	wavHeaderSlack    = 0.1 // seconds
)

// Decoder converts audio bytes into a models.Signal at SampleRate.
type Decoder struct {
	SampleRate int
	FFmpegPath string
	Timeout    time.Duration
}

func NewDecoder(sampleRate int) *Decoder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Decoder{
		SampleRate: sampleRate,
		FFmpegPath: defaultFFmpegPath,
		Timeout:    defaultTimeout,
	}
}

// Decode decodes data without a deadline beyond the decoder timeout.
func (d *Decoder) Decode(data []byte) (*models.Signal, error) {
	return d.DecodeContext(context.Background(), data)
}

func (d *Decoder) DecodeContext(ctx context.Context, data []byte) (*models.Signal, error) {
	return d.DecodeLimited(ctx, data, 0)
}

// DecodeLimited decodes data, failing with a duration_exceeded error when the
// audio is longer than maxSeconds. A limit of 0 or less disables the check.
func (d *Decoder) DecodeLimited(ctx context.Context, data []byte, maxSeconds float64) (*models.Signal, error) {
	if len(data) == 0 {
		return nil, apperrors.InvalidSignal("audio payload is empty")
	}

	var (
		samples []float64
		rate    int
		err     error
	)
	if IsWAV(data) {
		if err := checkWAVDuration(data, maxSeconds); err != nil {
			return nil, err
		}
		samples, rate, err = decodeWAV(data)
	} else {
		samples, rate, err = d.decodeWithFFmpeg(ctx, data, maxSeconds)
	}
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, apperrors.InvalidSignal("decoded audio contains no samples")
	}
	if rate <= 0 {
		return nil, apperrors.InvalidSignal("decoded audio has sample rate %d", rate)
	}

	signal := &models.Signal{
		Samples:    Resample(samples, rate, d.SampleRate),
		SampleRate: d.SampleRate,
	}
	if maxSeconds > 0 && signal.Duration() > maxSeconds {
		return nil, apperrors.DurationExceeded("audio is longer than %.1fs", maxSeconds)
	}
	return signal, nil
}

func (d *Decoder) DecodeFile(path string) (*models.Signal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file %s: %w", path, err)
	}
	return d.Decode(data)
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// checkWAVDuration rejects a WAV whose header declares more than maxSeconds.
// The RIFF size also counts non-audio chunks, so the header is trusted only
// beyond wavHeaderSlack; the exact check runs after decoding. Headers the
// parser cannot read are left to decodeWAV.
func checkWAVDuration(data []byte, maxSeconds float64) error {
	if maxSeconds <= 0 {
		return nil
	}
	declared, err := wav.NewDecoder(bytes.NewReader(data)).Duration()
	if err != nil || declared <= 0 {
		return nil
	}
	if s := declared.Seconds(); s > maxSeconds+wavHeaderSlack {
		return apperrors.DurationExceeded("audio is %.1fs, limit is %.1fs", s, maxSeconds)
	}
	return nil
}

func decodeWAV(data []byte) ([]float64, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, apperrors.New(apperrors.KindDecodeFailed, "invalid wav header")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, apperrors.New(apperrors.KindDecodeFailed, "unsupported wav format %d, expected PCM", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.KindDecodeFailed, err, "reading wav pcm data")
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, apperrors.New(apperrors.KindDecodeFailed, "wav file has no pcm data")
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = int(dec.NumChans)
	}
	if channels <= 0 {
		return nil, 0, apperrors.New(apperrors.KindDecodeFailed, "wav file declares %d channels", channels)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, 0, apperrors.New(apperrors.KindDecodeFailed, "unsupported bit depth %d", bitDepth)
	}

	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	if bitDepth == 8 {
		// 8-bit PCM is unsigned.
		interleaved := make([]float64, len(buf.Data))
		for i, v := range buf.Data {
			interleaved[i] = float64(v-128) * scale
		}
		return Downmix(interleaved, channels), buf.Format.SampleRate, nil
	}

	interleaved := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float64(v) * scale
	}
	return Downmix(interleaved, channels), buf.Format.SampleRate, nil
}

// decodeWithFFmpeg converts any container ffmpeg understands into mono s16le
// at the decoder rate. With a positive maxSeconds the output is cut just past
// the limit so oversized uploads are never fully converted.
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, data []byte, maxSeconds float64) ([]float64, int, error) {
	bin := d.FFmpegPath
	if bin == "" {
		bin = defaultFFmpegPath
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, 0, apperrors.Wrap(apperrors.KindDecodeFailed, err, "input is not wav and ffmpeg is unavailable")
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
	}
	if maxSeconds > 0 {
		args = append(args, "-t", strconv.FormatFloat(maxSeconds+1, 'f', 3, 64))
	}
	args = append(args,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", strconv.Itoa(d.SampleRate),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, apperrors.Wrap(apperrors.KindDecodeFailed, ctx.Err(), "ffmpeg timed out")
		}
		return nil, 0, apperrors.Wrap(apperrors.KindDecodeFailed, err, "ffmpeg conversion failed: %s", bytes.TrimSpace(stderr.Bytes()))
	}

	return pcm16ToSamples(stdout.Bytes()), d.SampleRate, nil
}

func pcm16ToSamples(raw []byte) []float64 {
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		samples[i] = float64(v) / 32768.0
	}
	return samples
}

// CheckFFmpegAvailable reports whether ffmpeg can be found on PATH.
func CheckFFmpegAvailable() error {
	if _, err := exec.LookPath(defaultFFmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH, only WAV input can be decoded: %w", err)
	}
	return nil
}
