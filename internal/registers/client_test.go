package registers

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/cranevision/pose-telemetry/pkg/types"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func startServer(t *testing.T, port int, store *Store) *Server {
	t.Helper()
	srv, err := NewServer(fmt.Sprintf("127.0.0.1:%d", port), store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := srv.Start(); err == nil {
			return srv
		} else if time.Now().After(deadline) {
			t.Fatalf("start server: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func TestClientWritesLandInStore(t *testing.T) {
	port := freePort(t)
	store := NewStore(256)
	layout := DefaultLayout()
	srv := startServer(t, port, store)
	defer srv.Stop()

	client, err := NewClient("127.0.0.1", port, layout.UnitID)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	sample := types.HookPose{Distance: 1.5, DeviationX: 3, DeviationY: -4, MarkerID: 1, Valid: true}
	if err := client.WriteRegisters(layout.HookBase, EncodeHook(sample)); err != nil {
		t.Fatalf("write: %v", err)
	}

	regs, err := store.Read(layout.HookBase, HookRegCount)
	if err != nil {
		t.Fatalf("store read: %v", err)
	}
	got, err := DecodeHook(regs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != sample {
		t.Fatalf("wire round trip: got %+v, want %+v", got, sample)
	}
}

func TestClientReconnectsAfterServerRestart(t *testing.T) {
	port := freePort(t)
	store := NewStore(256)
	layout := DefaultLayout()
	srv := startServer(t, port, store)

	client, err := NewClient("127.0.0.1", port, layout.UnitID)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	reconnects := 0
	client.OnReconnect = func() { reconnects++ }

	first := EncodeHook(types.HookPose{Distance: 1, MarkerID: 1, Valid: true})
	if err := client.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.WriteRegisters(layout.HookBase, first); err != nil {
		t.Fatalf("write while server is up: %v", err)
	}

	// Server goes away; writes must fail with the lost-connection sentinel,
	// not hang or succeed silently.
	if err := srv.Stop(); err != nil {
		t.Fatalf("stop server: %v", err)
	}
	var lostErr error
	deadline := time.Now().Add(10 * time.Second)
	for lostErr == nil {
		lostErr = client.WriteRegisters(layout.HookBase, first)
		if time.Now().After(deadline) {
			t.Fatalf("write kept succeeding after server stop")
		}
		if lostErr == nil {
			time.Sleep(50 * time.Millisecond)
		}
	}
	if !errors.Is(lostErr, ErrConnectionLost) {
		t.Fatalf("write error = %v, want ErrConnectionLost", lostErr)
	}

	// Server comes back; the write path reconnects on its own, subject to
	// backoff, and the next successful write lands in the store.
	srv2 := startServer(t, port, store)
	defer srv2.Stop()

	second := EncodeHook(types.HookPose{Distance: 2, MarkerID: 1, Valid: true})
	deadline = time.Now().Add(10 * time.Second)
	for {
		if err := client.WriteRegisters(layout.HookBase, second); err == nil {
			break
		} else if !errors.Is(err, ErrConnectionLost) {
			t.Fatalf("write error = %v, want ErrConnectionLost while backing off", err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("client never reconnected")
		}
		time.Sleep(100 * time.Millisecond)
	}

	if reconnects < 1 {
		t.Fatalf("reconnect callback fired %d times, want at least 1", reconnects)
	}
	regs, err := store.Read(layout.HookBase, HookRegCount)
	if err != nil {
		t.Fatalf("store read: %v", err)
	}
	got, err := DecodeHook(regs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Distance != 2 {
		t.Fatalf("Distance = %v, want the post-reconnect value 2", got.Distance)
	}
}
