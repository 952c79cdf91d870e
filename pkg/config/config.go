// Package config carries the peer manager's configuration
// and the ambient logging/YAML-loading machinery the rest of the module
// is built on, matching established pkg/config conventions.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/haskoin-go/peerd/pkg/wire/payload"
	"github.com/haskoin-go/peerd/pkg/wire/protocol"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Network describes the network a peer manager instance speaks to:
// magic bytes, DNS seeds, default port, user agent, segwit flag.
type Network struct {
	Magic       protocol.Magic `yaml:"Magic"`
	Seeds       []string       `yaml:"Seeds"`
	DefaultPort uint16         `yaml:"DefaultPort"`
	UserAgent   string         `yaml:"UserAgent"`
	SegWit      bool           `yaml:"SegWit"`
}

// Logger mirrors pkg/config.Logger: a small, validated
// block of logging knobs rather than a bare zap.Config literal.
type Logger struct {
	LogEncoding string `yaml:"LogEncoding"`
	LogLevel    string `yaml:"LogLevel"`
	LogPath     string `yaml:"LogPath"`
}

// Validate returns an error if the Logger configuration is not valid.
func (l Logger) Validate() error {
	if l.LogEncoding != "" && l.LogEncoding != "console" && l.LogEncoding != "json" {
		return fmt.Errorf("config: invalid LogEncoding %q", l.LogEncoding)
	}
	return nil
}

// Config is the full peer manager configuration. The
// Connect/Events/Messages collaborators are supplied programmatically by
// the caller (cmd/peerd), not loaded from YAML.
type Config struct {
	MaxPeers     int           `yaml:"MaxPeers"`
	StaticPeers  []string      `yaml:"StaticPeers"`
	Discover     bool          `yaml:"Discover"`
	LocalAddr    string        `yaml:"LocalAddr"`
	Network      Network       `yaml:"Network"`
	Timeout      time.Duration `yaml:"Timeout"`
	MaxLife      time.Duration `yaml:"MaxLife"`
	Log          Logger        `yaml:"Log"`
}

// LocalNetAddr resolves LocalAddr into the payload.NetAddr we advertise as
// addr_send in our outbound Version.
func (c Config) LocalNetAddr() (payload.NetAddr, error) {
	host, portStr, err := net.SplitHostPort(c.LocalAddr)
	if err != nil {
		return payload.NetAddr{}, errors.Wrapf(err, "config: invalid LocalAddr %q", c.LocalAddr)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupHost(host)
		if err != nil || len(ips) == 0 {
			return payload.NetAddr{}, errors.Errorf("config: cannot resolve LocalAddr host %q", host)
		}
		ip = net.ParseIP(ips[0])
	}
	var port uint16
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return payload.NetAddr{}, errors.Wrapf(err, "config: invalid LocalAddr port %q", portStr)
	}
	services := protocol.NodeNetwork
	if c.Network.SegWit {
		services |= protocol.NodeBloom
	}
	return payload.NewNetAddr(ip, port, services), nil
}

// Validate checks the fields the manager relies on for its invariants.
func (c Config) Validate() error {
	if c.MaxPeers <= 0 {
		return fmt.Errorf("config: MaxPeers must be positive, got %d", c.MaxPeers)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: Timeout must be positive")
	}
	if c.MaxLife <= 0 {
		return fmt.Errorf("config: MaxLife must be positive")
	}
	return c.Log.Validate()
}

// Load reads a YAML configuration file into a Config, matching established
// pkg/config YAML-unmarshal conventions.
func Load(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: decode %s", path)
	}
	return cfg, cfg.Validate()
}
