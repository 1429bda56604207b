// Package pcm converts between device float samples, 16-bit little-endian PCM and the
// base64 wire form used by the live session.
package pcm

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	CaptureSampleRate  = 16000
	PlaybackSampleRate = 24000
)

var ErrDecode = errors.New("pcm decode failed")

// DecodeError reports a malformed inbound payload.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pcm decode: %s: %v", e.Reason, e.Err)
	}
	return "pcm decode: " + e.Reason
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// Blob is one wire-ready audio chunk.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Buffer is a decoded mono chunk ready for an output sink.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Frames returns the number of sample frames in the buffer.
func (b Buffer) Frames() int {
	return len(b.Samples)
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	return FramesToDuration(int64(len(b.Samples)), b.SampleRate)
}

// FramesToDuration converts a frame count at sampleRate into a duration.
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 || frames <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// DurationToFrames converts a duration into the nearest frame index at sampleRate.
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	if sampleRate <= 0 || d <= 0 {
		return 0
	}
	return (int64(d)*int64(sampleRate) + int64(time.Second)/2) / int64(time.Second)
}

// MIMEType returns the raw PCM mime tag for sampleRate.
func MIMEType(sampleRate int) string {
	return "audio/pcm;rate=" + strconv.Itoa(sampleRate)
}

// RateFromMIME extracts the rate parameter of an audio/pcm mime type.
func RateFromMIME(mimeType string) (int, bool) {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		rate, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || rate <= 0 {
			return 0, false
		}
		return rate, true
	}
	return 0, false
}

// Encode quantizes float samples to 16-bit PCM and wraps them as a base64 wire chunk.
func Encode(samples []float32, sampleRate int) Blob {
	return Blob{
		MIMEType: MIMEType(sampleRate),
		Data:     base64.StdEncoding.EncodeToString(FloatToInt16LE(samples)),
	}
}

// FloatToInt16LE clamps samples to [-1, 1] and converts them to 16-bit little-endian PCM.
func FloatToInt16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		v := float64(sample)
		if math.IsNaN(v) {
			v = 0
		}
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(math.Round(v * 32767))
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Decode reverses the base64 wire encoding. No resampling happens here.
func Decode(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	return data, nil
}

// ToBuffer reinterprets bytes as mono 16-bit little-endian PCM normalized to [-1, 1).
func ToBuffer(data []byte, sampleRate int) (Buffer, error) {
	if sampleRate <= 0 {
		return Buffer{}, &DecodeError{Reason: fmt.Sprintf("invalid sample rate %d", sampleRate)}
	}
	if len(data) == 0 {
		return Buffer{}, &DecodeError{Reason: "empty payload"}
	}
	if len(data)%2 != 0 {
		return Buffer{}, &DecodeError{Reason: fmt.Sprintf("truncated payload of %d bytes", len(data))}
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		s := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		samples[i] = float32(s) / 32768
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// DecodeBuffer decodes a base64 payload straight into a playable buffer.
func DecodeBuffer(encoded string, sampleRate int) (Buffer, error) {
	data, err := Decode(encoded)
	if err != nil {
		return Buffer{}, err
	}
	return ToBuffer(data, sampleRate)
}
