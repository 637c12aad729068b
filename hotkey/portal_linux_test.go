//go:build linux

package hotkey

import (
	"errors"
	"regexp"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestRequestPath(t *testing.T) {
	got := requestPath(":1.42", "whispr_abc")
	want := dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/whispr_abc")
	if got != want {
		t.Errorf("requestPath = %s, want %s", got, want)
	}
	if !got.IsValid() {
		t.Error("request path is not a valid object path")
	}
}

func TestNewToken(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	a, b := newToken(), newToken()
	if a == b {
		t.Error("tokens repeat")
	}
	if !valid.MatchString(a) {
		t.Errorf("token %q has characters not allowed in an object path", a)
	}
}

func TestSessionHandle(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]dbus.Variant
		want    dbus.ObjectPath
		ok      bool
	}{
		{"string", map[string]dbus.Variant{"session_handle": dbus.MakeVariant("/org/freedesktop/portal/desktop/session/1_42/s")}, "/org/freedesktop/portal/desktop/session/1_42/s", true},
		{"object path", map[string]dbus.Variant{"session_handle": dbus.MakeVariant(dbus.ObjectPath("/s/1"))}, "/s/1", true},
		{"missing", map[string]dbus.Variant{}, "", false},
		{"wrong type", map[string]dbus.Variant{"session_handle": dbus.MakeVariant(uint32(3))}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sessionHandle(tt.results)
			if got != tt.want || ok != tt.ok {
				t.Errorf("sessionHandle = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDispatchActivated(t *testing.T) {
	p := NewPortal(Combo{Mods: ModCtrl, Key: "SPACE"}).(*portalHotkey)
	p.session = "/session/1"
	signals := make(chan *dbus.Signal, 4)
	done := make(chan struct{})
	go func() {
		p.dispatch(signals)
		close(done)
	}()

	signals <- &dbus.Signal{Name: shortcutsIface + ".Activated", Body: []any{dbus.ObjectPath("/session/other"), ShortcutID}}
	signals <- &dbus.Signal{Name: shortcutsIface + ".Activated", Body: []any{dbus.ObjectPath("/session/1"), "something-else"}}
	signals <- &dbus.Signal{Name: shortcutsIface + ".Activated", Body: []any{dbus.ObjectPath("/session/1"), ShortcutID}}
	close(signals)
	<-done

	select {
	case <-p.Triggers():
	default:
		t.Fatal("activation not delivered")
	}
	select {
	case <-p.Triggers():
		t.Fatal("foreign activation delivered")
	default:
	}
}

func TestDispatchResponse(t *testing.T) {
	p := NewPortal(Combo{Mods: ModCtrl, Key: "SPACE"}).(*portalHotkey)
	ch := make(chan portalResponse, 1)
	p.waiters["/req/1"] = ch
	signals := make(chan *dbus.Signal, 1)
	signals <- &dbus.Signal{Path: "/req/1", Name: requestIface + ".Response", Body: []any{uint32(1), map[string]dbus.Variant{}}}
	close(signals)
	p.dispatch(signals)

	r := <-ch
	if r.code != 1 || !errors.Is(responseError(r.code), errCancelled) {
		t.Errorf("response = %+v", r)
	}
}
