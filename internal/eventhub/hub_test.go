package eventhub

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/eweinhaus/VideoGen-sub002/internal/domain"
)

func TestHubDeliversInPublishOrder(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	defer hub.Close()

	sub := hub.Subscribe("job-1")
	for i := 0; i < 3; i++ {
		hub.Broadcast(domain.NewEvent("job-1", domain.EventProgress, map[string]any{"progress": i}))
	}

	for i := 0; i < 3; i++ {
		ev := <-sub.Events()
		if got := ev.Data["progress"].(int); got != i {
			t.Fatalf("event %d out of order: got progress %v", i, got)
		}
	}
}

func TestHubIsolatesJobs(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	defer hub.Close()

	a := hub.Subscribe("job-a")
	b := hub.Subscribe("job-b")

	hub.Broadcast(domain.NewEvent("job-a", domain.EventCompleted, nil))

	ev := <-a.Events()
	if ev.JobID != "job-a" {
		t.Fatalf("subscriber a got event for %q", ev.JobID)
	}
	select {
	case ev := <-b.Events():
		t.Fatalf("subscriber b got unexpected event %v", ev.Type)
	default:
	}
}

func TestHubDropsSlowSubscriberWithoutBlocking(t *testing.T) {
	hub := NewHub(2, zerolog.Nop())
	defer hub.Close()

	slow := hub.Subscribe("job-1")
	// Never drained: the third broadcast overflows the buffer and must drop
	// the subscriber instead of blocking.
	for i := 0; i < 3; i++ {
		hub.Broadcast(domain.NewEvent("job-1", domain.EventProgress, map[string]any{"progress": i}))
	}

	var received int
	for range slow.Events() {
		received++
	}
	if received != 2 {
		t.Fatalf("slow subscriber received %d buffered events, want 2", received)
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(8, zerolog.Nop())
	defer hub.Close()

	sub := hub.Subscribe("job-1")
	hub.Unsubscribe(sub)

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	// Publishing after the last subscriber left must not panic.
	hub.Broadcast(domain.NewEvent("job-1", domain.EventProgress, nil))
}
