package fanout

import (
	"testing"
	"time"
)

func TestSubscribeReceivesOnlyFramesPublishedAfter(t *testing.T) {
	fo := New[int](16)

	fo.Publish(1)
	fo.Publish(2)

	r := fo.Subscribe()

	fo.Publish(3)
	fo.Publish(4)

	for _, want := range []int{3, 4} {
		got, ok := r.Recv()
		if !ok {
			t.Fatalf("Recv() reported end-of-stream early, want %d", want)
		}
		if got != want {
			t.Errorf("Recv() = %d, want %d", got, want)
		}
	}
}

func TestCloseSignalsEndOfStream(t *testing.T) {
	fo := New[int](4)
	r := fo.Subscribe()

	fo.Publish(1)
	fo.Close()

	if v, ok := r.Recv(); !ok || v != 1 {
		t.Fatalf("Recv() = (%d, %v), want (1, true)", v, ok)
	}
	if _, ok := r.Recv(); ok {
		t.Fatal("Recv() after Close should report end-of-stream")
	}
}

func TestSubscribeAfterCloseIsImmediatelyAtEnd(t *testing.T) {
	fo := New[int](4)
	fo.Close()

	r := fo.Subscribe()
	if _, ok := r.Recv(); ok {
		t.Fatal("Subscribe after Close should yield an already-ended receiver")
	}
}

func TestFullQueueEvictsBeforeNextPublishReturns(t *testing.T) {
	// Mirrors spec scenario 4: capacity 16, 20 publishes with no drain,
	// eviction lands on the 17th publish (index 16).
	fo := New[int](DefaultQueueCapacity)
	r := fo.Subscribe()

	for i := 0; i < 20; i++ {
		fo.Publish(i)
		if i == 16 && fo.Len() != 0 {
			t.Fatalf("after the 17th publish (i=%d), subscriber should be evicted, Len()=%d", i, fo.Len())
		}
	}

	if fo.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after eviction", fo.Len())
	}

	drained := 0
	for {
		select {
		case v, ok := <-r.ch:
			if !ok {
				goto done
			}
			_ = v
			drained++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:
	if drained != DefaultQueueCapacity {
		t.Errorf("drained %d buffered values, want %d (queue capacity)", drained, DefaultQueueCapacity)
	}
	if _, ok := r.Recv(); ok {
		t.Error("Recv() after eviction should report end-of-stream")
	}
}

func TestOtherSubscribersUnaffectedByOneEviction(t *testing.T) {
	fo := New[int](4)
	slow := fo.Subscribe()
	fast := fo.Subscribe()

	for i := 0; i < 20; i++ {
		fo.Publish(i)
		if i < 4 {
			if _, ok := fast.Recv(); !ok {
				t.Fatal("fast subscriber should keep receiving")
			}
		} else {
			fast.Recv()
		}
	}

	if fo.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (only the fast subscriber left)", fo.Len())
	}
	_ = slow
}

func TestCloseIsIdempotentAndExplicitCloseIsSafeAfterEviction(t *testing.T) {
	fo := New[int](1)
	r := fo.Subscribe()
	fo.Publish(1)
	fo.Publish(2) // evicts r (queue full, capacity 1)

	r.Close() // already removed by eviction; must not panic
	fo.Close()
	fo.Close()
}
