package relay_test

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gimbalkit/gimbal/internal/relay"
)

// tcpPair returns two connected loopback conns, closed on cleanup.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	server, err = ln.Accept()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

func TestDeriveKey(t *testing.T) {
	key, err := relay.DeriveKey("hunter2")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	again, err := relay.DeriveKey("hunter2")
	require.NoError(t, err)
	assert.Equal(t, key, again)

	other, err := relay.DeriveKey("hunter3")
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, err = relay.DeriveKey("")
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	key, err := relay.GenerateKey()
	require.NoError(t, err)
	assert.Regexp(t, "^[0-9A-Za-z]{16}$", key)

	again, err := relay.GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, again)
}

func TestSecureConn(t *testing.T) {
	key, err := relay.DeriveKey("relay-test")
	require.NoError(t, err)

	t.Run("round trip both directions", func(t *testing.T) {
		clientRaw, serverRaw := tcpPair(t)
		client, err := relay.WrapConn(clientRaw, key, false)
		require.NoError(t, err)
		server, err := relay.WrapConn(serverRaw, key, true)
		require.NoError(t, err)

		_, err = client.Write([]byte("hello daemon"))
		require.NoError(t, err)
		buf := make([]byte, 12)
		_, err = io.ReadFull(server, buf)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello daemon"), buf)

		_, err = server.Write([]byte("hello client"))
		require.NoError(t, err)
		_, err = io.ReadFull(client, buf)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello client"), buf)
	})

	t.Run("short reads drain one frame", func(t *testing.T) {
		clientRaw, serverRaw := tcpPair(t)
		client, err := relay.WrapConn(clientRaw, key, false)
		require.NoError(t, err)
		server, err := relay.WrapConn(serverRaw, key, true)
		require.NoError(t, err)

		payload := []byte("0123456789abcdef0123456789abcdef")
		_, err = client.Write(payload)
		require.NoError(t, err)

		var got []byte
		chunk := make([]byte, 5)
		for len(got) < len(payload) {
			n, err := server.Read(chunk)
			require.NoError(t, err)
			got = append(got, chunk[:n]...)
		}
		assert.Equal(t, payload, got)
	})

	t.Run("differing keys fail authentication", func(t *testing.T) {
		otherKey, err := relay.DeriveKey("not-the-same")
		require.NoError(t, err)

		clientRaw, serverRaw := tcpPair(t)
		client, err := relay.WrapConn(clientRaw, otherKey, false)
		require.NoError(t, err)
		server, err := relay.WrapConn(serverRaw, key, true)
		require.NoError(t, err)

		_, err = client.Write([]byte("x"))
		require.NoError(t, err)
		_, err = server.Read(make([]byte, 1))
		assert.ErrorContains(t, err, "message authentication failed")
	})

	t.Run("bad key length", func(t *testing.T) {
		clientRaw, _ := tcpPair(t)
		_, err := relay.WrapConn(clientRaw, []byte{1, 2, 3}, false)
		assert.ErrorContains(t, err, "bad key length")
	})

	t.Run("rejects frames from own direction", func(t *testing.T) {
		clientRaw, serverRaw := tcpPair(t)
		// Both ends claim the accepting role, so every received frame
		// carries the reader's own direction byte.
		a, err := relay.WrapConn(clientRaw, key, true)
		require.NoError(t, err)
		b, err := relay.WrapConn(serverRaw, key, true)
		require.NoError(t, err)

		_, err = a.Write([]byte("x"))
		require.NoError(t, err)
		_, err = b.Read(make([]byte, 1))
		assert.ErrorContains(t, err, "reflected")
	})
}
