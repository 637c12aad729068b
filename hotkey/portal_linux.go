//go:build linux

package hotkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"whispr/log"
)

const (
	portalDest     = "org.freedesktop.portal.Desktop"
	portalPath     = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	shortcutsIface = "org.freedesktop.portal.GlobalShortcuts"
	requestIface   = "org.freedesktop.portal.Request"
	sessionIface   = "org.freedesktop.portal.Session"

	portalConnectTimeout = 5 * time.Second
	portalBindTimeout    = 60 * time.Second
)

type portalResponse struct {
	code    uint32
	results map[string]dbus.Variant
}

// portalShortcut is the (sa{sv}) element of BindShortcuts.
type portalShortcut struct {
	ID      string
	Options map[string]dbus.Variant
}

type portalHotkey struct {
	combo Combo

	mu          sync.Mutex
	registering bool
	conn        *dbus.Conn
	session     dbus.ObjectPath
	waiters     map[dbus.ObjectPath]chan portalResponse
	triggers    chan struct{}
}

// NewPortal binds the shortcut through the xdg-desktop-portal GlobalShortcuts
// interface. The compositor may show a dialog letting the user pick the keys;
// combo is only offered as the preferred trigger.
func NewPortal(combo Combo) Backend {
	return &portalHotkey{
		combo:    combo,
		waiters:  make(map[dbus.ObjectPath]chan portalResponse),
		triggers: make(chan struct{}, 1),
	}
}

func (p *portalHotkey) Name() string { return "portal" }

func (p *portalHotkey) Register() error {
	p.mu.Lock()
	if p.registering {
		p.mu.Unlock()
		return ErrRegistering
	}
	if p.conn != nil {
		p.mu.Unlock()
		return nil
	}
	p.registering = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.registering = false
		p.mu.Unlock()
	}()

	connectCtx, cancel := context.WithTimeout(context.Background(), portalConnectTimeout)
	defer cancel()

	conn, err := dbus.ConnectSessionBus(dbus.WithContext(connectCtx))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPortalUnavailable, err)
	}
	obj := conn.Object(portalDest, portalPath)
	if _, err := obj.GetProperty(shortcutsIface + ".version"); err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", ErrPortalUnavailable, err)
	}

	for _, match := range [][]dbus.MatchOption{
		{dbus.WithMatchInterface(requestIface), dbus.WithMatchMember("Response")},
		{dbus.WithMatchInterface(shortcutsIface), dbus.WithMatchMember("Activated")},
	} {
		if err := conn.AddMatchSignalContext(connectCtx, match...); err != nil {
			conn.Close()
			return fmt.Errorf("%w: subscribing to signals: %w", ErrPortalUnavailable, err)
		}
	}
	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
	// closed by conn.Close, which ends dispatch
	go p.dispatch(signals)

	session, err := p.createSession(connectCtx, obj)
	if err == nil {
		bindCtx, cancelBind := context.WithTimeout(context.Background(), portalBindTimeout)
		err = p.bind(bindCtx, obj, session)
		cancelBind()
	}
	if err != nil {
		p.teardown()
		return err
	}

	p.mu.Lock()
	p.session = session
	p.mu.Unlock()
	log.Infof("portal shortcut bound: session=%s trigger=%s", session, p.combo.Portal())
	return nil
}

func (p *portalHotkey) createSession(ctx context.Context, obj dbus.BusObject) (dbus.ObjectPath, error) {
	opts := map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant(newToken()),
	}
	res, err := p.request(ctx, "CreateSession", func(token string) *dbus.Call {
		opts["handle_token"] = dbus.MakeVariant(token)
		return obj.CallWithContext(ctx, shortcutsIface+".CreateSession", 0, opts)
	})
	if err != nil {
		return "", fmt.Errorf("%w: create session: %w", ErrPortalUnavailable, err)
	}
	session, ok := sessionHandle(res)
	if !ok {
		return "", fmt.Errorf("%w: create session: no session handle in response", ErrPortalUnavailable)
	}
	return session, nil
}

func (p *portalHotkey) bind(ctx context.Context, obj dbus.BusObject, session dbus.ObjectPath) error {
	shortcuts := []portalShortcut{{
		ID: ShortcutID,
		Options: map[string]dbus.Variant{
			"description":       dbus.MakeVariant(ShortcutDescription),
			"preferred_trigger": dbus.MakeVariant(p.combo.Portal()),
		},
	}}
	_, err := p.request(ctx, "BindShortcuts", func(token string) *dbus.Call {
		opts := map[string]dbus.Variant{"handle_token": dbus.MakeVariant(token)}
		return obj.CallWithContext(ctx, shortcutsIface+".BindShortcuts", 0, session, shortcuts, "", opts)
	})
	if err != nil {
		return fmt.Errorf("bind shortcuts: %w", err)
	}
	return nil
}

// request performs a portal method call and waits for the Response signal
// on the returned request object.
func (p *portalHotkey) request(ctx context.Context, method string, call func(token string) *dbus.Call) (map[string]dbus.Variant, error) {
	token := newToken()
	p.mu.Lock()
	sender := ""
	if names := p.conn.Names(); len(names) > 0 {
		sender = names[0]
	}
	expected := requestPath(sender, token)
	ch := make(chan portalResponse, 1)
	p.waiters[expected] = ch
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		for path, w := range p.waiters {
			if w == ch {
				delete(p.waiters, path)
			}
		}
		p.mu.Unlock()
	}()

	c := call(token)
	if c.Err != nil {
		return nil, c.Err
	}
	var handle dbus.ObjectPath
	if err := c.Store(&handle); err != nil {
		return nil, err
	}
	if handle != expected {
		// older portals pick their own request path
		p.mu.Lock()
		p.waiters[handle] = ch
		p.mu.Unlock()
	}

	select {
	case r := <-ch:
		if r.code != 0 {
			return nil, fmt.Errorf("%s: %s", method, responseError(r.code))
		}
		return r.results, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: waiting for portal: %w", method, ctx.Err())
	}
}

func (p *portalHotkey) dispatch(signals <-chan *dbus.Signal) {
	for sig := range signals {
		switch sig.Name {
		case requestIface + ".Response":
			if len(sig.Body) < 2 {
				continue
			}
			code, _ := sig.Body[0].(uint32)
			results, _ := sig.Body[1].(map[string]dbus.Variant)
			p.mu.Lock()
			ch := p.waiters[sig.Path]
			p.mu.Unlock()
			if ch != nil {
				select {
				case ch <- portalResponse{code: code, results: results}:
				default:
				}
			}

		case shortcutsIface + ".Activated":
			if len(sig.Body) < 2 {
				continue
			}
			session, _ := sig.Body[0].(dbus.ObjectPath)
			id, _ := sig.Body[1].(string)
			p.mu.Lock()
			ours := session == p.session
			p.mu.Unlock()
			if ours && id == ShortcutID {
				notify(p.triggers)
			}
		}
	}
}

func (p *portalHotkey) teardown() {
	p.mu.Lock()
	conn, session := p.conn, p.session
	p.conn, p.session = nil, ""
	p.mu.Unlock()
	if conn == nil {
		return
	}
	if session != "" {
		if call := conn.Object(portalDest, session).Call(sessionIface+".Close", 0); call.Err != nil {
			log.Warnf("closing portal session: %v", call.Err)
		}
	}
	conn.Close()
}

func (p *portalHotkey) Unregister() { p.teardown() }

func (p *portalHotkey) Triggers() <-chan struct{} { return p.triggers }

func newToken() string {
	return "whispr_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// requestPath predicts the object path of a portal request from the
// caller's unique bus name and handle token.
func requestPath(sender, token string) dbus.ObjectPath {
	s := strings.ReplaceAll(strings.TrimPrefix(sender, ":"), ".", "_")
	return dbus.ObjectPath("/org/freedesktop/portal/desktop/request/" + s + "/" + token)
}

func sessionHandle(results map[string]dbus.Variant) (dbus.ObjectPath, bool) {
	v, ok := results["session_handle"]
	if !ok {
		return "", false
	}
	switch h := v.Value().(type) {
	case string:
		return dbus.ObjectPath(h), h != ""
	case dbus.ObjectPath:
		return h, h != ""
	}
	return "", false
}

var errCancelled = errors.New("cancelled by user")

func responseError(code uint32) error {
	if code == 1 {
		return errCancelled
	}
	return fmt.Errorf("request failed (code %d)", code)
}
