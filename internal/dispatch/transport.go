package dispatch

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

const defaultSocketTimeout = 7 * time.Second

// Transport delivers a payload to a printer endpoint. It never retries;
// retry policy lives entirely in the job store.
type Transport interface {
	SendRaw(host string, port int, payload []byte) error
}

// TCPTransport writes the payload over a single raw TCP connection, bounded
// by Timeout for dial, write and close combined.
type TCPTransport struct {
	Timeout time.Duration
}

func (t *TCPTransport) SendRaw(host string, port int, payload []byte) error {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultSocketTimeout
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("connect %s: %w", address, err)
	}

	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write(payload); err != nil {
		conn.Close()
		return fmt.Errorf("write %s: %w", address, err)
	}

	if err := conn.Close(); err != nil {
		return fmt.Errorf("close %s: %w", address, err)
	}
	return nil
}
