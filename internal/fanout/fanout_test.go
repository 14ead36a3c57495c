package fanout

import "testing"

func TestTeeDeliversToBothBranches(t *testing.T) {
	in := make(chan string, 3)
	in <- "a"
	in <- "b"
	close(in)

	a, b := Tee(in, 4)

	var gotA, gotB []string
	for v := range a {
		gotA = append(gotA, v)
	}
	for v := range b {
		gotB = append(gotB, v)
	}

	if len(gotA) != 2 || len(gotB) != 2 {
		t.Fatalf("expected both branches to see both values, got a=%v b=%v", gotA, gotB)
	}
}

func TestTeeClosesBothBranchesWhenInputCloses(t *testing.T) {
	in := make(chan int)
	close(in)

	a, b := Tee(in, 1)
	if _, ok := <-a; ok {
		t.Fatal("expected branch a to be closed")
	}
	if _, ok := <-b; ok {
		t.Fatal("expected branch b to be closed")
	}
}
