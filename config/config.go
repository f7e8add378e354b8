// Package config loads the key=value file shared by providers and callers:
//
//	# provider
//	rpcserver_ip=127.0.0.1
//	rpcserver_port=8000
//	# naming service
//	discovery_endpoints=127.0.0.1:2379,127.0.0.1:22379
//	discovery_session_ttl=10
//	rpcserver_workers=4
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	DefaultEndpoint   = "127.0.0.1:2379"
	DefaultWorkers    = 4
	DefaultSessionTTL = 10
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	ServerIP           string
	ServerPort         int
	DiscoveryEndpoints []string
	Workers            int
	SessionTTL         int // seconds
}

// Load reads the file at path.
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		Insensitive:         true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return parse(f.Section(ini.DefaultSection))
}

// Parse reads configuration from the file contents in data.
func Parse(data []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		Insensitive:         true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return parse(f.Section(ini.DefaultSection))
}

func parse(sec *ini.Section) (*Config, error) {
	c := &Config{
		ServerIP:   strings.TrimSpace(sec.Key("rpcserver_ip").String()),
		Workers:    sec.Key("rpcserver_workers").MustInt(DefaultWorkers),
		SessionTTL: sec.Key("discovery_session_ttl").MustInt(DefaultSessionTTL),
	}
	if c.ServerIP == "" {
		return nil, fmt.Errorf("%w: rpcserver_ip is required", ErrInvalid)
	}

	port, err := sec.Key("rpcserver_port").Int()
	if err != nil {
		return nil, fmt.Errorf("%w: rpcserver_port: %v", ErrInvalid, err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: rpcserver_port %d out of range", ErrInvalid, port)
	}
	c.ServerPort = port

	if c.Workers < 1 {
		return nil, fmt.Errorf("%w: rpcserver_workers must be positive", ErrInvalid)
	}
	if c.SessionTTL < 1 {
		return nil, fmt.Errorf("%w: discovery_session_ttl must be positive", ErrInvalid)
	}

	for _, ep := range sec.Key("discovery_endpoints").Strings(",") {
		if ep != "" {
			c.DiscoveryEndpoints = append(c.DiscoveryEndpoints, ep)
		}
	}
	if len(c.DiscoveryEndpoints) == 0 && sec.HasKey("zookeeperip") {
		host := strings.TrimSpace(sec.Key("zookeeperip").String())
		port := strings.TrimSpace(sec.Key("zookeeperport").MustString("2379"))
		c.DiscoveryEndpoints = []string{net.JoinHostPort(host, port)}
	}
	if len(c.DiscoveryEndpoints) == 0 {
		c.DiscoveryEndpoints = []string{DefaultEndpoint}
	}
	return c, nil
}

// ServerAddr returns "ip:port".
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.ServerIP, fmt.Sprint(c.ServerPort))
}
