// Package server provides the listeners shared by the HTTP and gRPC servers.
package server

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/dtroode/authkeeper-server/internal/config"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// TLSListener opens TLS listeners from a certificate loaded once.
type TLSListener struct {
	config *tls.Config
}

// NewTLSListener loads the key pair so a bad certificate fails at startup
// instead of on the first Listen.
func NewTLSListener(certFile, keyFile string) (*TLSListener, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &TLSListener{config: &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}}, nil
}

func (l *TLSListener) Listen(protocol, addr string) (net.Listener, error) {
	return tls.Listen(protocol, addr, l.config.Clone())
}

// PlainListener opens unencrypted listeners.
type PlainListener struct{}

func NewPlainListener() *PlainListener {
	return &PlainListener{}
}

func (l *PlainListener) Listen(protocol, addr string) (net.Listener, error) {
	return net.Listen(protocol, addr)
}

// NewSecurityLayer picks TLS when both certificate paths are configured.
func NewSecurityLayer(cfg config.TLS) (model.SecurityLayer, error) {
	if !cfg.Enabled() {
		return NewPlainListener(), nil
	}
	l, err := NewTLSListener(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return l, nil
}
