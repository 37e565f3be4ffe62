package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receiveEvent(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return ChangeEvent{}
}

func assertNoEvent(t *testing.T, ch <-chan ChangeEvent) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected change event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
