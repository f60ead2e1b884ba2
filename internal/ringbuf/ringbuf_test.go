package ringbuf

import (
	"sync"
	"testing"
	"time"

	"risk-systemv1/internal/model"
)

func TestRing_BasicPushPop(t *testing.T) {
	r := New(4) // rounds to 4

	p1 := model.SpotPrice{Contract: "ZN Sep26", Price: 111.25}
	p2 := model.SpotPrice{Contract: "ZB Sep26", Price: 120.5}

	if !r.Push(p1) {
		t.Fatal("push p1 should succeed")
	}
	if !r.Push(p2) {
		t.Fatal("push p2 should succeed")
	}

	if r.Len() != 2 {
		t.Fatalf("expected len=2, got %d", r.Len())
	}

	got, ok := r.Pop()
	if !ok || got.Contract != "ZN Sep26" {
		t.Fatalf("expected ZN Sep26, got %v ok=%v", got.Contract, ok)
	}

	got, ok = r.Pop()
	if !ok || got.Contract != "ZB Sep26" {
		t.Fatalf("expected ZB Sep26, got %v ok=%v", got.Contract, ok)
	}

	_, ok = r.Pop()
	if ok {
		t.Fatal("pop from empty should return false")
	}
}

func TestRing_Overflow(t *testing.T) {
	r := New(2) // capacity = 2

	r.Push(model.SpotPrice{Price: 1})
	r.Push(model.SpotPrice{Price: 2})

	// Buffer is full
	ok := r.Push(model.SpotPrice{Price: 3})
	if ok {
		t.Fatal("push to full buffer should return false")
	}
	if r.Overflow() != 1 {
		t.Fatalf("expected overflow=1, got %d", r.Overflow())
	}
}

func TestRing_Wraparound(t *testing.T) {
	r := New(4)

	// Fill and drain multiple times to test wraparound
	for round := 0; round < 5; round++ {
		for i := 0; i < 4; i++ {
			if !r.Push(model.SpotPrice{Price: float64(round*10 + i)}) {
				t.Fatalf("round %d push %d failed", round, i)
			}
		}
		for i := 0; i < 4; i++ {
			p, ok := r.Pop()
			if !ok {
				t.Fatalf("round %d pop %d failed", round, i)
			}
			if p.Price != float64(round*10+i) {
				t.Fatalf("round %d pop %d: expected price=%d, got %v", round, i, round*10+i, p.Price)
			}
		}
	}
}

func TestRing_PopLatest(t *testing.T) {
	r := New(8)

	if _, ok := r.PopLatest(); ok {
		t.Fatal("PopLatest on empty should return false")
	}

	for i := 1; i <= 5; i++ {
		r.Push(model.SpotPrice{Price: float64(i)})
	}
	p, ok := r.PopLatest()
	if !ok || p.Price != 5 {
		t.Fatalf("PopLatest = %v ok=%v, want price 5", p.Price, ok)
	}
	if r.Len() != 0 {
		t.Fatalf("PopLatest should drain the buffer, len=%d", r.Len())
	}
}

func TestRing_SPSC_Concurrent(t *testing.T) {
	const count = 100_000
	r := New(1024)

	var wg sync.WaitGroup
	wg.Add(2)

	// Producer
	go func() {
		defer wg.Done()
		for i := 0; i < count; i++ {
			for !r.Push(model.SpotPrice{Price: float64(i)}) {
				// spin-wait (busy loop for test only)
			}
		}
	}()

	// Consumer
	received := make([]float64, 0, count)
	go func() {
		defer wg.Done()
		for len(received) < count {
			p, ok := r.Pop()
			if ok {
				received = append(received, p.Price)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("SPSC test timed out")
	}

	// Verify ordering
	for i, v := range received {
		if v != float64(i) {
			t.Fatalf("at index %d: expected %d, got %v", i, i, v)
		}
	}
}

func TestRing_NextPow2(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {5, 8}, {7, 8}, {8, 8}, {9, 16}, {1023, 1024},
	}
	for _, tc := range cases {
		got := nextPow2(tc.in)
		if got != tc.want {
			t.Errorf("nextPow2(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
