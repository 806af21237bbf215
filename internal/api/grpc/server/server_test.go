package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/dtroode/authkeeper-server/internal/mocks"
)

func TestGRPCServer_Address(t *testing.T) {
	s := NewGRPCServer(grpc.NewServer(), ":3200")
	assert.Equal(t, ":3200", s.Address())
}

func TestGRPCServer_StopBeforeStart(t *testing.T) {
	s := NewGRPCServer(grpc.NewServer(), ":0")
	assert.NoError(t, s.Stop(context.Background()))
}

func TestGRPCServer_StartAndStop(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	sec := mocks.NewSecurityLayer(t)
	sec.On("Listen", "tcp", ":0").Return(ln, nil)

	srv := NewGRPCServer(grpc.NewServer(), ":0")
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(sec) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not return after Stop")
	}
}

func TestGRPCServer_StartListenError(t *testing.T) {
	t.Parallel()

	listenErr := errors.New("permission denied")
	sec := mocks.NewSecurityLayer(t)
	sec.On("Listen", "tcp", ":443").Return(nil, listenErr)

	err := NewGRPCServer(grpc.NewServer(), ":443").Start(sec)
	assert.ErrorIs(t, err, listenErr)
}
