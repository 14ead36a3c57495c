package audio

import (
	"math"
	"testing"
)

func TestDownmixStereoToMono(t *testing.T) {
	// L=100, R=200 interleaved -> mean 150
	in := []int16{100, 200, -100, -200}
	out := Downmix(in, 2)
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
	if out[0] != 150 {
		t.Errorf("expected 150, got %d", out[0])
	}
	if out[1] != -150 {
		t.Errorf("expected -150, got %d", out[1])
	}
}

func TestDownmixMonoPassthrough(t *testing.T) {
	in := []int16{1, 2, 3}
	out := Downmix(in, 1)
	if len(out) != 3 || out[0] != 1 {
		t.Fatalf("mono input should pass through unchanged, got %v", out)
	}
}

func TestResampleSameRateIsCopy(t *testing.T) {
	in := []int16{1, 2, 3, 4}
	out := Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("expected same length, got %d", len(out))
	}
	out[0] = 99
	if in[0] == 99 {
		t.Fatal("Resample must return a copy, not alias the input")
	}
}

func TestResampleDownsampleLength(t *testing.T) {
	// 48kHz -> 16kHz should yield roughly 1/3 the samples.
	in := make([]int16, 4800) // 100ms at 48kHz
	out := Resample(in, 48000, 16000)
	want := 1600 // 100ms at 16kHz
	diff := len(out) - want
	if diff < 0 {
		diff = -diff
	}
	if diff > 2 {
		t.Fatalf("resampled length %d too far from expected %d", len(out), want)
	}
}

func TestFrameExactMultiple(t *testing.T) {
	samples := make([]int16, FrameSamples*3)
	frames := Frame(samples)
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for _, f := range frames {
		if len(f) != FrameSamples {
			t.Fatalf("expected frame of %d samples, got %d", FrameSamples, len(f))
		}
	}
}

func TestFramePadsLastFrame(t *testing.T) {
	samples := make([]int16, FrameSamples+10)
	for i := range samples {
		samples[i] = 1
	}
	frames := Frame(samples)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	last := frames[1]
	for i := 10; i < FrameSamples; i++ {
		if last[i] != 0 {
			t.Fatalf("expected zero padding at index %d, got %d", i, last[i])
		}
	}
}

func TestInt16BytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 12345}
	b := Int16ToBytes(in)
	if len(b) != len(in)*2 {
		t.Fatalf("expected %d bytes, got %d", len(in)*2, len(b))
	}
	out := BytesToInt16(b)
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("round trip mismatch at %d: %d != %d", i, in[i], out[i])
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 100, -100, 200, -200, 32767, -32768}
	wav := EncodeWAV(samples, 16000)

	decoded, rate, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if samples[i] != decoded[i] {
			t.Errorf("sample %d mismatch: %d != %d", i, samples[i], decoded[i])
		}
	}
}

func TestRMSSilenceIsZero(t *testing.T) {
	samples := make([]int16, 100)
	if rms := RMS(samples); rms != 0 {
		t.Errorf("expected 0 RMS for silence, got %f", rms)
	}
}

func TestRMSFullScaleIsNearOne(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = 32767
	}
	rms := RMS(samples)
	if math.Abs(rms-1.0) > 0.001 {
		t.Errorf("expected RMS near 1.0 for full-scale signal, got %f", rms)
	}
}
