//go:build linux
// +build linux

package socket

import (
	"net"
	"testing"

	gerrors "github.com/panjf2000/gnet/v2/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestListenBindsEphemeralPort(t *testing.T) {
	fd, addr, err := Listen("tcp", "127.0.0.1:0", SocketOptions{ReuseAddr: true, TCPNoDelay: TCPNoDelay})
	require.NoError(t, err)
	defer unix.Close(fd)

	tcpAddr, ok := addr.(*net.TCPAddr)
	require.True(t, ok)
	assert.NotZero(t, tcpAddr.Port)
	assert.True(t, tcpAddr.IP.Equal(net.IPv4(127, 0, 0, 1)))

	reuse, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR)
	require.NoError(t, err)
	assert.Equal(t, 1, reuse)

	// The kernel completes the handshake into the accept queue on its own.
	conn, err := net.Dial("tcp", tcpAddr.String())
	require.NoError(t, err)
	assert.NoError(t, conn.Close())
}

func TestListenRejectsNonTCP(t *testing.T) {
	for _, proto := range []string{"udp", "unix", ""} {
		_, _, err := Listen(proto, "127.0.0.1:0", SocketOptions{})
		assert.ErrorIs(t, err, gerrors.ErrUnsupportedProtocol, proto)
	}
}

func TestSetOptions(t *testing.T) {
	opts := SetOptions("tcp", SocketOptions{
		ReusePort:        true,
		ReuseAddr:        true,
		TCPNoDelay:       TCPNoDelay,
		SocketRecvBuffer: 1 << 16,
		SocketSendBuffer: 1 << 16,
	})
	assert.Len(t, opts, 5)

	opts = SetOptions("tcp", SocketOptions{TCPNoDelay: TCPDelay})
	assert.Empty(t, opts)
}
