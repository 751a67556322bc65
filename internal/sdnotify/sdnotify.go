package sdnotify

import (
	"net"
	"os"
)

// Notifier sends systemd service state over the NOTIFY_SOCKET datagram
// socket. All sends are fire-and-forget; when the socket is not set (not
// running under systemd) every call is a no-op.
type Notifier struct {
	socket string
}

func New() *Notifier {
	return &Notifier{socket: os.Getenv("NOTIFY_SOCKET")}
}

func (n *Notifier) Ready() error { return n.send("READY=1") }

func (n *Notifier) Heartbeat() error { return n.send("WATCHDOG=1") }

func (n *Notifier) Stopping() error { return n.send("STOPPING=1") }

func (n *Notifier) send(state string) error {
	if n.socket == "" {
		return nil
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{
		Name: n.socket,
		Net:  "unixgram",
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(state))
	return err
}
