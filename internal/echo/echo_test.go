package echo

import "testing"

func toneSamples(n int, amp int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func TestIsEcho_NoPlaybackIsNeverEcho(t *testing.T) {
	s := NewSuppressor()
	in := toneSamples(320, 10000)
	if s.IsEcho(in) {
		t.Fatal("no playback recorded, input must not classify as echo")
	}
}

func TestIsEcho_IdenticalAudioIsEcho(t *testing.T) {
	s := NewSuppressor()
	played := toneSamples(320, 10000)
	s.RecordPlayed(played)

	if !s.IsEcho(played) {
		t.Fatal("input identical to recently played audio should classify as echo")
	}
}

func TestIsEcho_UnrelatedAudioIsNotEcho(t *testing.T) {
	s := NewSuppressor()
	s.RecordPlayed(toneSamples(320, 10000))

	silence := make([]int16, 320)
	if s.IsEcho(silence) {
		t.Fatal("silence should not correlate with played tone")
	}
}

func TestClearResetsHistory(t *testing.T) {
	s := NewSuppressor()
	played := toneSamples(320, 10000)
	s.RecordPlayed(played)
	s.Clear()

	if s.IsEcho(played) {
		t.Fatal("after Clear, no reference audio should remain to correlate against")
	}
}
