package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authkeeper-server/internal/config"
)

func writeCertificate(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"authkeeper test"}},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestTLSListener_Handshake(t *testing.T) {
	t.Parallel()

	certFile, keyFile := writeCertificate(t)
	l, err := NewTLSListener(certFile, keyFile)
	require.NoError(t, err)

	ln, err := l.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("ok"))
	}()

	conn, err := tls.Dial("tcp", ln.Addr().String(), &tls.Config{InsecureSkipVerify: true}) //nolint:gosec // self-signed test certificate
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 2)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf))
	assert.GreaterOrEqual(t, conn.ConnectionState().Version, uint16(tls.VersionTLS12))
}

func TestNewTLSListener_MissingFiles(t *testing.T) {
	t.Parallel()

	l, err := NewTLSListener(filepath.Join(t.TempDir(), "absent.crt"), filepath.Join(t.TempDir(), "absent.key"))
	require.Error(t, err)
	assert.Nil(t, l)
}

func TestPlainListener_Listen(t *testing.T) {
	t.Parallel()

	ln, err := NewPlainListener().Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	assert.NotEmpty(t, ln.Addr().String())

	_, err = NewPlainListener().Listen("tcp", "invalid-address")
	assert.Error(t, err)
}

func TestNewSecurityLayer(t *testing.T) {
	t.Parallel()

	layer, err := NewSecurityLayer(config.TLS{})
	require.NoError(t, err)
	assert.IsType(t, &PlainListener{}, layer)

	certFile, keyFile := writeCertificate(t)
	layer, err = NewSecurityLayer(config.TLS{CertFile: certFile, KeyFile: keyFile})
	require.NoError(t, err)
	assert.IsType(t, &TLSListener{}, layer)

	_, err = NewSecurityLayer(config.TLS{CertFile: "missing.crt", KeyFile: "missing.key"})
	assert.Error(t, err)
}
