package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quorumkv/raft/pkg/raft"
)

// PeerConfig is one entry in the cluster config file's peer list.
type PeerConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
	Voting  bool   `yaml:"voting"`
}

// Config is the on-disk cluster configuration, generalized from the
// teacher's cmd/server/main.go flag set into a YAML file per the
// ambient-stack expansion (SPEC_FULL.md §2.1).
type Config struct {
	NodeID            string       `yaml:"node_id"`
	ListenAddress     string       `yaml:"listen_address"`
	HTTPAddress       string       `yaml:"http_address"`
	MetricsAddress    string       `yaml:"metrics_address"`
	DataDir           string       `yaml:"data_dir"`
	Peers             []PeerConfig `yaml:"peers"`
	ElectionTimeoutMs int          `yaml:"election_timeout_ms"`
	TickIntervalMs    int          `yaml:"tick_interval_ms"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ElectionTimeoutMs == 0 {
		c.ElectionTimeoutMs = 1000
	}
	if c.TickIntervalMs == 0 {
		c.TickIntervalMs = c.ElectionTimeoutMs / 10
	}
	if c.DataDir == "" {
		c.DataDir = fmt.Sprintf("/tmp/quorumkv-%s", c.NodeID)
	}
}

func (c *Config) validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("config: node_id is required")
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("config: listen_address is required")
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("config: http_address is required")
	}
	return nil
}

func (c *Config) votingNodes() []raft.NodeID {
	var nodes []raft.NodeID
	for _, p := range c.Peers {
		if p.Voting {
			nodes = append(nodes, raft.NodeID(p.ID))
		}
	}
	return nodes
}

func (c *Config) electionTimeout() time.Duration {
	return time.Duration(c.ElectionTimeoutMs) * time.Millisecond
}

func (c *Config) tickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}
