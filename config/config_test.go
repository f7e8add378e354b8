package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpc.conf")
	content := `
# provider
rpcserver_ip = 127.0.0.1
rpcserver_port=8000

discovery_endpoints = 10.0.0.1:2379, 10.0.0.2:2379
rpcserver_workers=8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", c.ServerIP)
	assert.Equal(t, 8000, c.ServerPort)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, c.DiscoveryEndpoints)
	assert.Equal(t, 8, c.Workers)
	assert.Equal(t, DefaultSessionTTL, c.SessionTTL)
	assert.Equal(t, "127.0.0.1:8000", c.ServerAddr())
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("rpcserver_ip=10.1.1.1\nrpcserver_port=9000\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultEndpoint}, c.DiscoveryEndpoints)
	assert.Equal(t, DefaultWorkers, c.Workers)
	assert.Equal(t, DefaultSessionTTL, c.SessionTTL)
}

func TestParseNamingServiceFallback(t *testing.T) {
	c, err := Parse([]byte("rpcserver_ip=10.1.1.1\nrpcserver_port=9000\nzookeeperip=10.2.2.2\nzookeeperport=2181\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.2.2.2:2181"}, c.DiscoveryEndpoints)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing ip", "rpcserver_port=9000"},
		{"missing port", "rpcserver_ip=127.0.0.1"},
		{"port not a number", "rpcserver_ip=127.0.0.1\nrpcserver_port=abc"},
		{"port out of range", "rpcserver_ip=127.0.0.1\nrpcserver_port=70000"},
		{"zero workers", "rpcserver_ip=127.0.0.1\nrpcserver_port=9000\nrpcserver_workers=0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.conf"))
	assert.Error(t, err)
}
