package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDecodeGatewayEvent(t *testing.T) {
	tests := []struct {
		data    string
		want    Event
		wantErr bool
	}{
		{`{"type":"qr","payload":"2@abc"}`, Event{Kind: EventPairingRequired, Payload: "2@abc"}, false},
		{`{"type":"ready"}`, Event{Kind: EventReady}, false},
		{`{"type":"auth_failure","reason":"bad creds"}`, Event{Kind: EventAuthFailed, Reason: "bad creds"}, false},
		{`{"type":"disconnected","reason":"NAVIGATION"}`, Event{Kind: EventDisconnected, Reason: "NAVIGATION"}, false},
		{`{"type":"loading_screen"}`, Event{}, true},
		{`not json`, Event{}, true},
	}

	for _, tt := range tests {
		got, err := DecodeGatewayEvent([]byte(tt.data))
		if tt.wantErr {
			if err == nil {
				t.Errorf("DecodeGatewayEvent(%s): expected error", tt.data)
			}
			continue
		}
		if err != nil {
			t.Errorf("DecodeGatewayEvent(%s) failed: %v", tt.data, err)
			continue
		}
		if got != tt.want {
			t.Errorf("DecodeGatewayEvent(%s) = %+v, want %+v", tt.data, got, tt.want)
		}
	}
}

func nextEvent(t *testing.T, c *LoopbackClient) Event {
	t.Helper()
	select {
	case evt := <-c.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for loopback event")
		return Event{}
	}
}

func TestLoopbackClientLifecycle(t *testing.T) {
	c := NewLoopbackClient(0, 0, zap.NewNop())
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	pairing := nextEvent(t, c)
	if pairing.Kind != EventPairingRequired || !strings.HasPrefix(pairing.Payload, "loopback-") {
		t.Errorf("expected pairing event, got %+v", pairing)
	}
	if ready := nextEvent(t, c); ready.Kind != EventReady {
		t.Errorf("expected ready event, got %+v", ready)
	}

	id, err := c.Send(context.Background(), "15550001111", "hello")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if id == "" {
		t.Error("expected a message id")
	}
}

func TestLoopbackClientClosed(t *testing.T) {
	c := NewLoopbackClient(time.Hour, time.Hour, zap.NewNop())
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on a pending pairing delay")
	}

	if _, err := c.Send(context.Background(), "1", "x"); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
	if err := c.Connect(context.Background()); !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed on reconnect, got %v", err)
	}
	if c.Emit(Event{Kind: EventReady}) {
		t.Error("expected Emit to report failure after Close")
	}
}

func TestLoopbackClientRepairsAfterDisconnect(t *testing.T) {
	c := NewLoopbackClient(0, 0, zap.NewNop())
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	first := nextEvent(t, c)
	if ready := nextEvent(t, c); ready.Kind != EventReady {
		t.Fatalf("expected ready event, got %+v", ready)
	}

	// Wait for the pairing walk to wind down before reconnecting.
	deadline := time.Now().Add(time.Second)
	for {
		c.mu.Lock()
		started := c.started
		c.mu.Unlock()
		if !started {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pairing walk never finished")
		}
		time.Sleep(time.Millisecond)
	}

	if !c.Emit(Event{Kind: EventDisconnected, Reason: "dropped"}) {
		t.Fatal("Emit failed")
	}
	if evt := nextEvent(t, c); evt.Kind != EventDisconnected {
		t.Fatalf("expected disconnected event, got %+v", evt)
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	pairing := nextEvent(t, c)
	if pairing.Kind != EventPairingRequired {
		t.Fatalf("expected a fresh pairing event, got %+v", pairing)
	}
	if pairing.Payload == first.Payload {
		t.Errorf("expected a new pairing payload, got %q again", pairing.Payload)
	}
	if ready := nextEvent(t, c); ready.Kind != EventReady {
		t.Errorf("expected ready after re-pairing, got %+v", ready)
	}
}
