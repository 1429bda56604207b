package pcm

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestEncodeToBufferRoundTrip(t *testing.T) {
	t.Parallel()

	samples := []float32{0, 0.5, -0.5, 0.25, -1, 1, 0.123456, -0.987654}
	blob := Encode(samples, CaptureSampleRate)

	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("unexpected mime type: %q", blob.MIMEType)
	}

	buf, err := DecodeBuffer(blob.Data, CaptureSampleRate)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if buf.Frames() != len(samples) {
		t.Fatalf("expected %d frames, got %d", len(samples), buf.Frames())
	}

	const tolerance = 1.0 / 16384
	for i, want := range samples {
		if diff := math.Abs(float64(buf.Samples[i] - want)); diff > tolerance {
			t.Fatalf("sample %d: want %f got %f (diff %g)", i, want, buf.Samples[i], diff)
		}
	}
}

func TestFloatToInt16LEClamps(t *testing.T) {
	t.Parallel()

	out := FloatToInt16LE([]float32{2, -3, float32(math.NaN())})
	got := []int16{
		int16(uint16(out[0]) | uint16(out[1])<<8),
		int16(uint16(out[2]) | uint16(out[3])<<8),
		int16(uint16(out[4]) | uint16(out[5])<<8),
	}
	if got[0] != 32767 || got[1] != -32767 || got[2] != 0 {
		t.Fatalf("unexpected clamped values: %v", got)
	}
}

func TestToBufferRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"empty":     {},
		"truncated": {0x01, 0x02, 0x03},
	}
	for name, data := range cases {
		data := data
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ToBuffer(data, PlaybackSampleRate)
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %v", err)
			}
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode in chain")
			}
		})
	}
}

func TestDecodeRejectsInvalidBase64(t *testing.T) {
	t.Parallel()

	_, err := DecodeBuffer("not base64!!", PlaybackSampleRate)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestToBufferNormalizesLittleEndian(t *testing.T) {
	t.Parallel()

	buf, err := ToBuffer([]byte{0x00, 0x80, 0x00, 0x40}, PlaybackSampleRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Samples[0] != -1 || buf.Samples[1] != 0.5 {
		t.Fatalf("unexpected samples: %v", buf.Samples)
	}
}

func TestBufferDuration(t *testing.T) {
	t.Parallel()

	buf := Buffer{Samples: make([]float32, 4800), SampleRate: PlaybackSampleRate}
	if buf.Duration() != 200*time.Millisecond {
		t.Fatalf("unexpected duration: %s", buf.Duration())
	}
	if DurationToFrames(200*time.Millisecond, PlaybackSampleRate) != 4800 {
		t.Fatalf("unexpected frame conversion")
	}
}

func TestRateFromMIME(t *testing.T) {
	t.Parallel()

	if rate, ok := RateFromMIME("audio/pcm;rate=24000"); !ok || rate != 24000 {
		t.Fatalf("unexpected rate: %d %v", rate, ok)
	}
	if rate, ok := RateFromMIME("audio/pcm; Rate=16000"); !ok || rate != 16000 {
		t.Fatalf("unexpected rate: %d %v", rate, ok)
	}
	if _, ok := RateFromMIME("audio/pcm"); ok {
		t.Fatalf("expected missing rate")
	}
	if _, ok := RateFromMIME("audio/pcm;rate=abc"); ok {
		t.Fatalf("expected invalid rate")
	}
}

func TestFloat32LERoundTrip(t *testing.T) {
	t.Parallel()

	samples := []float32{0.25, -0.75, 1}
	buf := make([]byte, 13)
	n := PutFloat32LE(buf, samples)
	if n != 12 {
		t.Fatalf("expected 12 bytes written, got %d", n)
	}
	got := Float32FromLE(buf)
	if len(got) != 3 || got[0] != 0.25 || got[1] != -0.75 || got[2] != 1 {
		t.Fatalf("unexpected samples: %v", got)
	}
}
