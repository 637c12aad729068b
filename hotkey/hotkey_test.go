package hotkey

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countToggler struct {
	n   atomic.Int32
	err error
}

func (c *countToggler) Toggle() error {
	c.n.Add(1)
	return c.err
}

func TestBridgeForwardsTriggers(t *testing.T) {
	fk := NewFake()
	target := &countToggler{err: errors.New("busy")}
	b := NewBridge(fk, target)
	if err := b.Register(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	for range 3 {
		fk.SimTrigger()
	}
	deadline := time.After(time.Second)
	for target.n.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("toggled %d times, want 3", target.n.Load())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
	if fk.Registered() {
		t.Error("backend still registered after Run returned")
	}
}

func TestBridgeRegisterError(t *testing.T) {
	fk := NewFake()
	fk.RegisterErr = errors.New("denied")
	if err := NewBridge(fk, &countToggler{}).Register(); err == nil {
		t.Fatal("expected error")
	}
}

func TestFallback(t *testing.T) {
	t.Run("primary works", func(t *testing.T) {
		p, s := NewFake(), NewFake()
		f := NewFallback(p, s)
		if err := f.Register(); err != nil {
			t.Fatal(err)
		}
		if !p.Registered() || s.Registered() {
			t.Error("wrong backend registered")
		}
		if f.Triggers() != p.Triggers() {
			t.Error("triggers not taken from primary")
		}
	})
	t.Run("portal unavailable", func(t *testing.T) {
		p, s := NewFake(), NewFake()
		p.RegisterErr = ErrPortalUnavailable
		f := NewFallback(p, s)
		if err := f.Register(); err != nil {
			t.Fatal(err)
		}
		if !s.Registered() {
			t.Error("secondary not registered")
		}
		if f.Triggers() != s.Triggers() {
			t.Error("triggers not taken from secondary")
		}
		f.Unregister()
		if s.Registered() {
			t.Error("secondary still registered")
		}
	})
	t.Run("registration in progress", func(t *testing.T) {
		p, s := NewFake(), NewFake()
		p.RegisterErr = ErrRegistering
		f := NewFallback(p, s)
		if err := f.Register(); !errors.Is(err, ErrRegistering) {
			t.Errorf("err = %v, want ErrRegistering", err)
		}
		if s.registers != 0 {
			t.Error("fell back while primary registration was in progress")
		}
	})
	t.Run("both fail", func(t *testing.T) {
		p, s := NewFake(), NewFake()
		p.RegisterErr = ErrPortalUnavailable
		s.RegisterErr = errors.New("no keyboards")
		err := NewFallback(p, s).Register()
		if !errors.Is(err, ErrPortalUnavailable) || !errors.Is(err, s.RegisterErr) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestIsWayland(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want bool
	}{
		{map[string]string{"WAYLAND_DISPLAY": "wayland-0"}, true},
		{map[string]string{"XDG_SESSION_TYPE": "wayland"}, true},
		{map[string]string{"XDG_SESSION_TYPE": "x11", "DISPLAY": ":0"}, false},
		{map[string]string{}, false},
	}
	for _, tt := range tests {
		got := IsWayland(func(k string) string { return tt.env[k] })
		if got != tt.want {
			t.Errorf("IsWayland(%v) = %v, want %v", tt.env, got, tt.want)
		}
	}
}
