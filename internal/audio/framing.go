package audio

// FrameSamples is the sample count of one 20ms frame at 16kHz mono (spec
// §3, TTSFrame: "20 ms of 16 kHz signed-16-bit mono PCM (640 bytes)").
const FrameSamples = 320

// FrameBytes is FrameSamples expressed in bytes (2 bytes/sample).
const FrameBytes = FrameSamples * 2

// Frame splits mono 16kHz samples into fixed 320-sample (640-byte) chunks,
// zero-padding the final frame if it's short, per spec §4.4 step 4 and the
// round-trip law in §8 ("ceil(T*50) frames of 640 bytes, possibly padding
// the last with zeros").
func Frame(samples []int16) [][]int16 {
	if len(samples) == 0 {
		return nil
	}
	n := (len(samples) + FrameSamples - 1) / FrameSamples
	frames := make([][]int16, n)
	for i := 0; i < n; i++ {
		start := i * FrameSamples
		end := start + FrameSamples
		frame := make([]int16, FrameSamples)
		if end > len(samples) {
			end = len(samples)
		}
		copy(frame, samples[start:end])
		frames[i] = frame
	}
	return frames
}

// Int16ToBytes serializes mono PCM16 samples to little-endian bytes, the
// wire representation used for both the outbound audio track and the
// base64-encoded tts_chunk datagram payload.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(uint16(s))
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// BytesToInt16 is the inverse of Int16ToBytes.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[i*2]) | uint16(b[i*2+1])<<8)
	}
	return out
}
