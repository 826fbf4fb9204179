package event

import (
	"sync"
	"testing"
)

func TestStreamSequenceIsMonotonic(t *testing.T) {
	bus := NewBus()
	var events []Event
	bus.SubscribeAll(func(ev Event) { events = append(events, ev) })

	stream := NewStream(bus, "sess-1")
	stream.Start(StartData{Topic: "add caching layer"})
	stream.Progress("codex-cli", 50, "analyzing")
	stream.Consensus(ConsensusData{Score: 82, Band: "Good Agreement"})
	stream.Complete(CompleteData{Score: 82, Band: "Good Agreement", CanProceed: true})

	if len(events) != 4 {
		t.Fatalf("received %d events, want 4", len(events))
	}
	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d Seq = %d, want %d", i, ev.Seq, i+1)
		}
		if ev.SessionID != "sess-1" {
			t.Errorf("event %d SessionID = %q, want %q", i, ev.SessionID, "sess-1")
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d has zero timestamp", i)
		}
	}
}

func TestStreamResumesSequence(t *testing.T) {
	bus := NewBus()
	var events []Event
	bus.SubscribeAll(func(ev Event) { events = append(events, ev) })

	stream := NewStreamAt(bus, "sess-1", 7)
	stream.Progress("codex-cli", 50, "analyzing")
	stream.Complete(CompleteData{Score: 82})

	if events[0].Seq != 8 || events[1].Seq != 9 {
		t.Errorf("resumed Seqs = %d, %d; want 8, 9", events[0].Seq, events[1].Seq)
	}
	if got := stream.Seq(); got != 9 {
		t.Errorf("Seq() = %d, want 9", got)
	}
}

func TestStreamConcurrentEmitNoDuplicateSeq(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	seen := make(map[uint64]bool)
	bus.SubscribeAll(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		if seen[ev.Seq] {
			t.Errorf("duplicate Seq %d", ev.Seq)
		}
		seen[ev.Seq] = true
	})

	stream := NewStream(bus, "sess-1")
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(provider string) {
			defer wg.Done()
			for p := 0; p <= 100; p += 10 {
				stream.Progress(provider, p, "")
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	if len(seen) != 22 {
		t.Errorf("recorded %d unique sequence numbers, want 22", len(seen))
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	bus := NewBus()
	var events []Event
	bus.SubscribeAll(func(ev Event) { events = append(events, ev) })

	a := NewStream(bus, "sess-a")
	b := NewStream(bus, "sess-b")
	a.Progress("p", 10, "")
	b.Progress("p", 10, "")

	if events[0].Seq != 1 || events[1].Seq != 1 {
		t.Errorf("per-session sequences = %d, %d; want 1, 1", events[0].Seq, events[1].Seq)
	}
}

func TestErrorEventPayload(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(TypeError, func(ev Event) { got = ev })

	stream := NewStream(bus, "sess-1")
	stream.Error("copilot-bridge", "health check failed", true)

	data, ok := got.Data.(ErrorData)
	if !ok {
		t.Fatalf("Data is %T, want ErrorData", got.Data)
	}
	if data.Provider != "copilot-bridge" || !data.Recoverable {
		t.Errorf("ErrorData = %+v, want provider copilot-bridge recoverable", data)
	}
}
