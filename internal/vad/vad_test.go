package vad

import (
	"testing"
	"time"
)

func TestSpeechStartRequiresMinConfirmedFrames(t *testing.T) {
	d := New(0.1, 300*time.Millisecond, 3)
	now := time.Now()

	for i := 0; i < 2; i++ {
		ev := d.Process(0.5, now)
		if ev.Type != NoEvent {
			t.Fatalf("expected no event before min confirmed frames, got %v at frame %d", ev.Type, i)
		}
	}
	ev := d.Process(0.5, now)
	if ev.Type != SpeechStart {
		t.Fatalf("expected SpeechStart on the 3rd confirmed frame, got %v", ev.Type)
	}
}

func TestSpeechEndAfterSilenceLimit(t *testing.T) {
	d := New(0.1, 100*time.Millisecond, 1)
	now := time.Now()
	d.Process(0.5, now)
	if !d.IsSpeaking() {
		t.Fatal("expected speaking after one confirmed frame with minConfirmed=1")
	}

	ev := d.Process(0.0, now.Add(50*time.Millisecond))
	if ev.Type != NoEvent {
		t.Fatalf("expected no event before silence limit elapses, got %v", ev.Type)
	}

	ev = d.Process(0.0, now.Add(150*time.Millisecond))
	if ev.Type != SpeechEnd {
		t.Fatalf("expected SpeechEnd once silence limit elapses, got %v", ev.Type)
	}
}

func TestBriefDipDoesNotEndSpeech(t *testing.T) {
	d := New(0.1, 200*time.Millisecond, 1)
	now := time.Now()
	d.Process(0.5, now)
	d.Process(0.0, now.Add(50*time.Millisecond))
	ev := d.Process(0.5, now.Add(60*time.Millisecond))
	if ev.Type != NoEvent || !d.IsSpeaking() {
		t.Fatal("expected a brief dip below threshold to not end speech")
	}
}

func TestResetClearsState(t *testing.T) {
	d := New(0.1, 100*time.Millisecond, 1)
	d.Process(0.5, time.Now())
	d.Reset()
	if d.IsSpeaking() {
		t.Fatal("expected IsSpeaking false after Reset")
	}
}
