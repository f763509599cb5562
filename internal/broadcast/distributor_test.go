package broadcast

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type captureSink struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Publish(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

func TestBroadcastFIFO(t *testing.T) {
	d := NewDistributor(zap.NewNop())
	a := d.Subscribe()
	b := d.Subscribe()
	defer d.Unsubscribe(a)
	defer d.Unsubscribe(b)

	for i := 0; i < 10; i++ {
		d.Broadcast("new-attack", map[string]int{"eventId": i})
	}
	for _, s := range []*Subscription{a, b} {
		for i := 0; i < 10; i++ {
			msg := <-s.C
			if want := fmt.Sprintf(`{"eventId":%d}`, i); string(msg.Data) != want || msg.Name != "new-attack" {
				t.Fatalf("subscriber %s message %d = %s %s, want %s", s.ID, i, msg.Name, msg.Data, want)
			}
		}
	}
}

func TestBroadcastDropsForSlowSubscriber(t *testing.T) {
	d := NewDistributor(zap.NewNop())
	slow := d.Subscribe()
	defer d.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < DefaultBuffer+5; i++ {
			d.Broadcast("new-attack", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full subscriber")
	}
	if slow.Dropped() != 5 {
		t.Errorf("dropped = %d, want 5", slow.Dropped())
	}
	if first := <-slow.C; string(first.Data) != "0" {
		t.Errorf("first message = %s, want 0", first.Data)
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDistributor(zap.NewNop())
	s := d.Subscribe()
	if d.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", d.Subscribers())
	}
	d.Unsubscribe(s)
	d.Unsubscribe(s)
	if _, ok := <-s.C; ok {
		t.Error("channel open after Unsubscribe")
	}
	d.Broadcast("new-attack", 1)
	if d.Subscribers() != 0 {
		t.Errorf("subscribers = %d", d.Subscribers())
	}
}

func TestSinkFailureDoesNotStopDelivery(t *testing.T) {
	failing := &captureSink{err: errors.New("relay down")}
	ok := &captureSink{}
	d := NewDistributor(zap.NewNop(), failing, ok)
	s := d.Subscribe()
	defer d.Unsubscribe(s)

	d.Broadcast("attack-updated", map[string]string{"status": "working"})
	if msg := <-s.C; msg.Name != "attack-updated" {
		t.Errorf("message = %+v", msg)
	}
	if len(failing.msgs) != 1 || len(ok.msgs) != 1 {
		t.Errorf("sink deliveries = %d, %d", len(failing.msgs), len(ok.msgs))
	}
}

func TestBroadcastUnencodablePayload(t *testing.T) {
	d := NewDistributor(zap.NewNop())
	s := d.Subscribe()
	defer d.Unsubscribe(s)
	d.Broadcast("new-attack", make(chan int))
	select {
	case msg := <-s.C:
		t.Errorf("unexpected message %+v", msg)
	default:
	}
}

func TestStreamHandler(t *testing.T) {
	d := NewDistributor(zap.NewNop())
	srv := httptest.NewServer(&StreamHandler{Distributor: d, Logger: zap.NewNop(), Heartbeat: 20 * time.Millisecond})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.Broadcast("new-attack", map[string]int{"eventId": 7})

	reader := bufio.NewReader(resp.Body)
	var sawPing, sawEvent bool
	for !(sawPing && sawEvent) {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case line == ": ping":
			sawPing = true
		case line == "event: new-attack":
			data, _ := reader.ReadString('\n')
			if strings.TrimSpace(data) != `data: {"eventId":7}` {
				t.Fatalf("data line = %q", data)
			}
			sawEvent = true
		}
	}
}

func TestStreamSubscribedBeforePreamble(t *testing.T) {
	d := NewDistributor(zap.NewNop())
	srv := httptest.NewServer(&StreamHandler{Distributor: d, Logger: zap.NewNop(), Heartbeat: time.Hour})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	if err != nil || strings.TrimSpace(first) != ": connected" {
		t.Fatalf("preamble = %q, %v", first, err)
	}
	// No waiting on Subscribers: seeing the preamble is enough.
	d.Broadcast("new-attack", map[string]int{"eventId": 1})

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.TrimSpace(line) == "event: new-attack" {
			return
		}
	}
}
