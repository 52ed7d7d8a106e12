package relay

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// Keyed relays seal the TCP leg with chacha20poly1305. Every application
// write becomes one frame: 4-byte big-endian length, 12-byte nonce,
// ciphertext. The nonce carries a direction byte up front and a send
// counter in its tail, so the two directions of a session never share a
// nonce and a peer cannot replay our own frames back at us.

const (
	maxFrameSize = 64 * 1024

	dirClient = 0x00
	dirServer = 0x01

	keyIterations = 100000
	keySalt       = "gimbal-relay-v1"

	genKeyLength = 16
	base62Chars  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// DeriveKey stretches a relay passphrase to the 32 bytes the cipher
// wants. Both ends must agree on the passphrase.
func DeriveKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("relay key cannot be empty")
	}
	return pbkdf2.Key([]byte(passphrase), []byte(keySalt), keyIterations, chacha20poly1305.KeySize, sha256.New), nil
}

// GenerateKey creates a random 16-char base62 passphrase.
func GenerateKey() (string, error) {
	randomBytes := make([]byte, genKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	key := make([]byte, genKeyLength)
	for i, b := range randomBytes {
		key[i] = base62Chars[int(b)%62]
	}

	return string(key), nil
}

type secureConn struct {
	net.Conn
	aead    cipher.AEAD
	sendDir byte
	sendCtr uint64
	recvBuf bytes.Buffer
	mu      sync.Mutex
}

// WrapConn layers sealed framing over conn. The accepting end passes
// server=true, the dialing end server=false; the flag picks the nonce
// direction byte, so the two ends of one session must disagree on it.
func WrapConn(conn net.Conn, key []byte, server bool) (net.Conn, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	dir := byte(dirClient)
	if server {
		dir = dirServer
	}
	return &secureConn{Conn: conn, aead: aead, sendDir: dir}, nil
}

func (s *secureConn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, chacha20poly1305.NonceSize)
	nonce[0] = s.sendDir
	binary.BigEndian.PutUint64(nonce[4:], s.sendCtr)
	s.sendCtr++

	ct := s.aead.Seal(nil, nonce, p, nil)
	length := uint32(len(nonce) + len(ct))

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], length)

	if i, err := s.Conn.Write(hdr[:]); err != nil {
		return i, err
	}
	if i, err := s.Conn.Write(nonce); err != nil {
		return i, err
	}
	if i, err := s.Conn.Write(ct); err != nil {
		return i, err
	}

	return len(p), nil
}

func (s *secureConn) Read(p []byte) (int, error) {
	if s.recvBuf.Len() == 0 {
		var hdr [4]byte
		if i, err := io.ReadFull(s.Conn, hdr[:]); err != nil {
			return i, err
		}
		length := binary.BigEndian.Uint32(hdr[:])
		if length < chacha20poly1305.NonceSize || length > maxFrameSize {
			return 0, io.ErrUnexpectedEOF
		}

		pkt := make([]byte, length)
		if i, err := io.ReadFull(s.Conn, pkt); err != nil {
			return i, err
		}

		nonce := pkt[:chacha20poly1305.NonceSize]
		ct := pkt[chacha20poly1305.NonceSize:]

		if nonce[0] == s.sendDir {
			return 0, errors.New("relay: frame reflected from our own direction")
		}

		pt, err := s.aead.Open(nil, nonce, ct, nil)
		if err != nil {
			return 0, err
		}

		s.recvBuf.Write(pt)
	}
	return s.recvBuf.Read(p)
}
