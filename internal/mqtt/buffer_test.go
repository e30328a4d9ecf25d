package mqtt

import (
	"testing"
)

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: Topic, payload: []byte{byte(i)}})
	}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	pushN(rb, 0, 5)

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}

	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got))
	}
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)
	pushN(rb, 0, 8)

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		want := byte(i + 3) // oldest 3 were dropped
		if got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
}

func TestRingBufferOverflowReportedOncePerDrain(t *testing.T) {
	rb := newRingBuffer(2)
	pushN(rb, 0, 2)

	if !rb.push(bufferedMsg{topic: Topic}) {
		t.Error("first overwrite should be reported")
	}
	if rb.push(bufferedMsg{topic: Topic}) {
		t.Error("second overwrite should not be reported")
	}

	rb.drainAll()
	pushN(rb, 0, 2)
	if !rb.push(bufferedMsg{topic: Topic}) {
		t.Error("overflow after drain should be reported again")
	}
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	pushN(rb, 0, 3)
	if got := rb.drainAll(); len(got) != 3 {
		t.Fatalf("cycle 1: expected 3 items, got %d", len(got))
	}

	pushN(rb, 10, 14)
	got := rb.drainAll()
	if len(got) != 4 {
		t.Fatalf("cycle 2: expected 4 items, got %d", len(got))
	}
	for i, msg := range got {
		if want := byte(10 + i); msg.payload[0] != want {
			t.Errorf("cycle 2 item %d: expected %d, got %d", i, want, msg.payload[0])
		}
	}
}

func TestRingBufferLenAndFields(t *testing.T) {
	rb := newRingBuffer(10)
	if rb.len() != 0 {
		t.Errorf("expected len 0, got %d", rb.len())
	}

	rb.push(bufferedMsg{topic: TopicSystem, payload: []byte(`{"test":true}`), qos: 1, retained: true})
	rb.push(bufferedMsg{topic: Topic})
	if rb.len() != 2 {
		t.Errorf("expected len 2, got %d", rb.len())
	}

	got := rb.drainAll()
	if rb.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", rb.len())
	}
	if got[0].topic != TopicSystem || string(got[0].payload) != `{"test":true}` || got[0].qos != 1 || !got[0].retained {
		t.Errorf("fields not preserved: %+v", got[0])
	}
}
