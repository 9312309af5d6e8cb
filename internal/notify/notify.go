// Package notify provides a desktop-notification implementation of the
// engine's UI callback, via the freedesktop Notifications D-Bus service.
// It is optional, fire-and-forget, and swallows its own failures. A host
// with no session bus must never affect detection.
package notify

import "github.com/godbus/dbus/v5"

const (
	notifyDest = "org.freedesktop.Notifications"
	notifyPath = "/org/freedesktop/Notifications"
)

// DBusSink is a UI callback that forwards strings as desktop notifications.
type DBusSink struct {
	conn *dbus.Conn
}

// NewDBusSink connects to the session bus. Call sites that cannot reach a
// session bus (headless hosts, CI) should simply not construct one and fall
// back to another UI sink; this is a capability, not a requirement.
func NewDBusSink() (*DBusSink, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &DBusSink{conn: conn}, nil
}

// Notify sends message as a desktop notification. It never returns an error
// to the caller; failures are swallowed per the engine's fire-and-forget
// callback contract.
func (s *DBusSink) Notify(message string) {
	if s == nil || s.conn == nil {
		return
	}
	obj := s.conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	_ = obj.Call("org.freedesktop.Notifications.Notify", 0,
		"ransomwatchd", uint32(0), "", "Ransomware detector", message,
		[]string{}, map[string]dbus.Variant{}, int32(8000))
}

// Close releases the underlying bus connection.
func (s *DBusSink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
