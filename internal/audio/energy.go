package audio

import "math"

// RMS computes the root-mean-square energy of mono PCM16 samples, normalized
// to [0,1]. This is the server-side silence-detection signal StreamingASR
// uses to finalize an utterance (spec §4.2, open question (b)). Grounded on
// the teacher's RMSVAD.calculateRMS, generalized from raw bytes to []int16.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
