// Package audio implements the sample-level primitives AudioIngress and
// StreamingTTS need: stereo downmix, linear-interpolation resampling, WAV
// encoding, 20ms framing, and RMS energy. All functions operate on signed
// 16-bit PCM, the wire format used everywhere in this codebase.
package audio

// Downmix averages interleaved stereo samples into mono by signed
// arithmetic mean, per spec §4.1.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// Resample converts mono PCM16 samples from srcRate to dstRate using linear
// interpolation. This is a low-cost resampler: "intelligible speech" is the
// quality bar (spec §4.1), not musical fidelity, so no polyphase filter is
// needed. Grounded on the ratio-walk resampler used by the retrieved
// streaming ASR/LLM/TTS gateway, adapted from float32 to int16 samples.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(samples) == 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen <= 0 {
		return nil
	}
	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		srcIdx := float64(i) * ratio
		idx := int(srcIdx)
		frac := srcIdx - float64(idx)
		out[i] = interpolate(samples, idx, frac)
	}
	return out
}

func interpolate(samples []int16, idx int, frac float64) int16 {
	if idx+1 >= len(samples) {
		if idx < len(samples) {
			return samples[idx]
		}
		return 0
	}
	a, b := float64(samples[idx]), float64(samples[idx+1])
	return int16(a*(1-frac) + b*frac)
}
