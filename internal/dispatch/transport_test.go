package dispatch

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPTransportSendRaw(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	transport := &TCPTransport{Timeout: time.Second}

	payload := []byte("SIZE 57 mm, 32 mm\nPRINT 1\n")
	require.NoError(t, transport.SendRaw("127.0.0.1", port, payload))

	select {
	case got := <-received:
		assert.Equal(t, payload, got)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never received the payload")
	}
}

func TestTCPTransportConnectionRefused(t *testing.T) {
	// Grab a port and close it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	transport := &TCPTransport{Timeout: time.Second}
	err = transport.SendRaw("127.0.0.1", port, []byte("PRINT 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}
