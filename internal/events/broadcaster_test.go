package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{
		Type:       EventUpsert,
		Path:       "arduino/main.ino",
		ActivePath: "arduino/main.ino",
		FileCount:  3,
	})

	select {
	case received := <-ch:
		if received.Type != EventUpsert {
			t.Errorf("expected type %s, got %s", EventUpsert, received.Type)
		}
		if received.Path != "arduino/main.ino" {
			t.Errorf("expected path arduino/main.ino, got %s", received.Path)
		}
		if received.FileCount != 3 {
			t.Errorf("expected 3 files, got %d", received.FileCount)
		}
		if received.Timestamp == 0 {
			t.Error("expected non-zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(Event{Type: EventActivate, ActivePath: "src/App.tsx"})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.ActivePath != "src/App.tsx" {
				t.Errorf("subscriber %d: expected src/App.tsx, got %s", i, received.ActivePath)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill the channel buffer (64)
	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: EventEdit, Path: "src/App.tsx"})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			goto done
		}
	}
done:
	if count != 64 {
		t.Errorf("expected 64 buffered events, got %d", count)
	}
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(Event{
		Type:       EventReplace,
		ActivePath: "src/App.tsx",
		FileCount:  2,
		Timestamp:  1234567890,
	})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["activePath"] != "src/App.tsx" {
		t.Errorf("activePath = %v", m["activePath"])
	}
	if _, ok := m["path"]; ok {
		t.Error("empty path should be omitted")
	}
}
