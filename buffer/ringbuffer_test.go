package buffer

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetRecentNewestFirst(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Add(fmt.Sprintf("line %d", i))
	}
	got := rb.GetRecent(10)
	if len(got) != 3 {
		t.Fatalf("GetRecent returned %d lines, want 3", len(got))
	}
	if got[0].Text != "line 5" || got[2].Text != "line 3" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].ID != 5 {
		t.Fatalf("newest ID = %d, want 5", got[0].ID)
	}
	if rb.GetCount() != 5 {
		t.Fatalf("GetCount = %d, want 5", rb.GetCount())
	}
}

func TestTextsOldestFirst(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Add("a")
	rb.Add("b")
	rb.Add("c")
	got := rb.Texts(2)
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("Texts(2) = %v", got)
	}
}

func TestEmptyAndNonPositive(t *testing.T) {
	rb := NewRingBuffer(0)
	if rb.Capacity() != 1 {
		t.Fatalf("capacity clamp = %d", rb.Capacity())
	}
	if len(rb.GetRecent(5)) != 0 || len(rb.GetRecent(-1)) != 0 {
		t.Fatalf("empty ring should return no lines")
	}
}

func TestConcurrentAdd(t *testing.T) {
	rb := NewRingBuffer(100)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				rb.Add(fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	if rb.GetCount() != 1000 {
		t.Fatalf("GetCount = %d, want 1000", rb.GetCount())
	}
	if got := len(rb.GetRecent(1000)); got > 100 {
		t.Fatalf("GetRecent returned %d lines beyond capacity", got)
	}
}
