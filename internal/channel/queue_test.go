// SPDX-License-Identifier: AGPL-3.0-or-later

package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pagi-run/pagi/internal/scope"
)

func TestReceiveQueuePushPopOrder(t *testing.T) {
	q := NewReceiveQueue(4)
	ctx := context.Background()

	events := []scope.Event{
		{Type: scope.EventHTTPRequest, Body: []byte("a")},
		{Type: scope.EventHTTPRequest, Body: []byte("b")},
		{Type: scope.EventHTTPRequest, Body: []byte("c")},
	}
	for _, e := range events {
		if err := q.Push(ctx, e); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	for _, want := range events {
		got, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop: %v", err)
		}
		if string(got.Body) != string(want.Body) {
			t.Fatalf("got %q want %q", got.Body, want.Body)
		}
	}
}

func TestReceiveQueueBackpressure(t *testing.T) {
	q := NewReceiveQueue(1)
	ctx := context.Background()

	if err := q.Push(ctx, scope.Event{Type: scope.EventHTTPRequest}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.TryPush(scope.Event{Type: scope.EventHTTPRequest}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	pushed := make(chan struct{})
	go func() {
		defer wg.Done()
		if err := q.Push(ctx, scope.Event{Type: scope.EventHTTPDisconnect}); err != nil {
			t.Errorf("blocked push: %v", err)
		}
		close(pushed)
	}()

	// Drain the one buffered event, which must unblock the goroutine above.
	if _, err := q.Pop(ctx); err != nil {
		t.Fatalf("pop: %v", err)
	}

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("blocked push did not unblock after Pop freed capacity")
	}
	wg.Wait()
}

func TestReceiveQueueCloseUnblocksPop(t *testing.T) {
	q := NewReceiveQueue(1)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if err != ErrQueueClosed {
			t.Fatalf("got %v want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock on Close")
	}
}

func TestReceiveQueueContextCancel(t *testing.T) {
	q := NewReceiveQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("got %v want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock on context cancel")
	}
}
