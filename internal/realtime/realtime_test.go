// README: Registry and broadcaster tests over a fake sink.
package realtime

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"kota/internal/types"
)

type fakeSink struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
	block    chan struct{} // non-nil: WriteMessage parks until closed
}

func (f *fakeSink) WriteMessage(m Message) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeSink) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.messages))
	for i, m := range f.messages {
		out[i] = m.Kind
	}
	return out
}

// waitFor polls until cond holds or the deadline passes; the write loop is
// asynchronous, so assertions on received messages need a grace period.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestPublishReachesSubscribers(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg)

	sinkA, sinkB, sinkC := &fakeSink{}, &fakeSink{}, &fakeSink{}
	connA := NewConn("user-a", sinkA)
	connB := NewConn("user-b", sinkB)
	connC := NewConn("user-c", sinkC)
	defer reg.Disconnect(connA)
	defer reg.Disconnect(connB)
	defer reg.Disconnect(connC)

	reg.Subscribe(connA, "ord-1")
	reg.Subscribe(connB, "ord-1")
	reg.Subscribe(connC, "ord-2")

	b.Publish("ord-1", "status-changed", map[string]string{"status": "confirmed"})

	waitFor(t, func() bool { return sinkA.count() == 1 && sinkB.count() == 1 })
	if sinkC.count() != 0 {
		t.Fatalf("subscriber of another order received %d messages", sinkC.count())
	}
	if got := sinkA.kinds()[0]; got != "status-changed" {
		t.Fatalf("kind = %q", got)
	}
}

func TestDisconnectStopsDelivery(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg)

	sinkA, sinkB := &fakeSink{}, &fakeSink{}
	connA := NewConn("user-a", sinkA)
	connB := NewConn("user-b", sinkB)
	defer reg.Disconnect(connB)

	reg.Subscribe(connA, "ord-1")
	reg.Subscribe(connB, "ord-1")

	b.Publish("ord-1", "status-changed", nil)
	waitFor(t, func() bool { return sinkA.count() == 1 && sinkB.count() == 1 })

	reg.Disconnect(connA)
	b.Publish("ord-1", "status-changed", nil)

	waitFor(t, func() bool { return sinkB.count() == 2 })
	if sinkA.count() != 1 {
		t.Fatalf("disconnected conn received %d messages", sinkA.count())
	}
	sinkA.mu.Lock()
	closed := sinkA.closed
	sinkA.mu.Unlock()
	if !closed {
		t.Fatal("disconnect must close the sink")
	}
}

func TestUnsubscribeLeavesOtherGroups(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg)

	sink := &fakeSink{}
	conn := NewConn("user-a", sink)
	defer reg.Disconnect(conn)

	reg.Subscribe(conn, "ord-1")
	reg.Subscribe(conn, "ord-2")
	reg.Unsubscribe(conn, "ord-1")

	b.Publish("ord-1", "status-changed", nil)
	b.Publish("ord-2", "status-changed", nil)

	waitFor(t, func() bool { return sink.count() == 1 })
	if len(reg.Subscribers("ord-1")) != 0 {
		t.Fatal("empty group not removed")
	}
}

func TestBroadcastToAvailableDrivers(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg)

	sinkOn, sinkOff := &fakeSink{}, &fakeSink{}
	connOn := NewConn("rider-1", sinkOn)
	connOff := NewConn("rider-2", sinkOff)
	defer reg.Disconnect(connOn)
	defer reg.Disconnect(connOff)

	reg.SetAvailable("rider-1", connOn)
	reg.SetAvailable("rider-2", connOff)
	reg.SetUnavailable("rider-2")

	b.BroadcastToAvailableDrivers("order-available", map[string]string{"order_id": "ord-9"})

	waitFor(t, func() bool { return sinkOn.count() == 1 })
	if sinkOff.count() != 0 {
		t.Fatalf("unavailable rider received %d messages", sinkOff.count())
	}
}

// TestSlowSubscriberNeverBlocksPublish fills the queue of a parked connection
// and checks Send keeps returning immediately.
func TestSlowSubscriberNeverBlocksPublish(t *testing.T) {
	block := make(chan struct{})
	sink := &fakeSink{block: block}
	conn := NewConn("user-a", sink)
	defer close(block)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendQueueSize*4; i++ {
			conn.Send(Message{Kind: "status-changed"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Send blocked on a slow subscriber")
	}
}

// TestConcurrentRegistryAccess churns subscribes, publishes and disconnects
// together; meant to run under -race.
func TestConcurrentRegistryAccess(t *testing.T) {
	reg := NewRegistry()
	b := NewBroadcaster(reg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sink := &fakeSink{}
			conn := NewConn(types.ID(fmt.Sprintf("user-%d", i)), sink)
			orderID := types.ID(fmt.Sprintf("ord-%d", i%3))
			for j := 0; j < 50; j++ {
				reg.Subscribe(conn, orderID)
				b.Publish(orderID, "status-changed", nil)
				reg.SetAvailable(conn.UserID(), conn)
				b.BroadcastToAvailableDrivers("order-available", nil)
				reg.SetUnavailable(conn.UserID())
				reg.Unsubscribe(conn, orderID)
			}
			reg.Disconnect(conn)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 3; i++ {
		if n := len(reg.Subscribers(types.ID(fmt.Sprintf("ord-%d", i)))); n != 0 {
			t.Errorf("group ord-%d still has %d subscribers", i, n)
		}
	}
	if n := len(reg.AvailableConns()); n != 0 {
		t.Errorf("%d conns still available", n)
	}
}
