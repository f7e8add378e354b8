package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/HUMBLE6666/rpc/client"
	"github.com/HUMBLE6666/rpc/config"
	"github.com/HUMBLE6666/rpc/discovery"
	"github.com/HUMBLE6666/rpc/example/arith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProviderServesArith(t *testing.T) {
	store := discovery.NewMemoryStore()
	cfg := &config.Config{ServerIP: "127.0.0.1", Workers: 2}

	p, err := newProvider(cfg, store.Session(), 100, time.Second)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errc := make(chan error, 1)
	go func() { errc <- p.Serve(context.Background(), ln) }()
	t.Cleanup(func() {
		p.Shutdown(2 * time.Second)
		assert.NoError(t, <-errc)
	})

	caller := store.Session()
	require.NoError(t, caller.Connect(context.Background()))
	require.Eventually(t, func() bool {
		_, found, _ := caller.Lookup(context.Background(), "/Arith/Add")
		return found
	}, 2*time.Second, 10*time.Millisecond)

	stub := arith.NewStub(client.NewChannel(caller, client.WithLogger(zap.NewNop())))
	got, err := stub.Add(context.Background(), 3, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}
