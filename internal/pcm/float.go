package pcm

import (
	"encoding/binary"
	"math"
)

// Float32FromLE reads little-endian IEEE-754 samples. A trailing partial sample is ignored.
func Float32FromLE(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

// PutFloat32LE writes samples into dst as little-endian IEEE-754 and returns the bytes written.
func PutFloat32LE(dst []byte, samples []float32) int {
	n := 0
	for _, sample := range samples {
		if n+4 > len(dst) {
			break
		}
		binary.LittleEndian.PutUint32(dst[n:], math.Float32bits(sample))
		n += 4
	}
	return n
}
