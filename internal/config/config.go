// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.

// Package config loads the three configuration surfaces a node needs: its
// own TOML identity and logging settings, the miner's .properties tuning
// knobs, and an optional YAML peer seed list.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// NodeConfig holds a node's network identity and logging settings, loaded
// from a TOML file.
type NodeConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogPath  string `toml:"log_path"`
	LogLevel string `toml:"log_level"`
}

// Addr returns the host:port this node should listen on and advertise.
func (c NodeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultNodeConfig returns the settings a node starts with when no TOML
// file is given.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{Host: "127.0.0.1", Port: 9000, LogLevel: "info"}
}

// LoadNodeConfig reads path as TOML into a NodeConfig seeded with
// DefaultNodeConfig's values. An empty path returns the defaults
// untouched.
func LoadNodeConfig(path string) (NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return NodeConfig{}, errors.Wrap(err, "config: load node config")
	}
	return cfg, nil
}

// MinerTuning holds the operational knobs for mining progress reporting
// and peer I/O deadlines.
type MinerTuning struct {
	ProgressReportEvery int
	DialTimeout         time.Duration
	ReadTimeout         time.Duration
}

// DefaultMinerTuning matches the fixed constants the miner and peer
// packages use when no .properties file is supplied.
func DefaultMinerTuning() MinerTuning {
	return MinerTuning{
		ProgressReportEvery: 10_000,
		DialTimeout:         10 * time.Second,
		ReadTimeout:         10 * time.Second,
	}
}

// LoadMinerTuning reads path as a .properties file, falling back to
// DefaultMinerTuning for any key it does not set. An empty or missing
// path returns the defaults untouched.
func LoadMinerTuning(path string) (MinerTuning, error) {
	tuning := DefaultMinerTuning()
	if path == "" {
		return tuning, nil
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		if os.IsNotExist(err) {
			return tuning, nil
		}
		return MinerTuning{}, errors.Wrap(err, "config: load miner tuning")
	}

	tuning.ProgressReportEvery = p.GetInt("progress_report_every", tuning.ProgressReportEvery)
	tuning.DialTimeout = time.Duration(p.GetInt("dial_timeout_seconds", int(tuning.DialTimeout/time.Second))) * time.Second
	tuning.ReadTimeout = time.Duration(p.GetInt("read_timeout_seconds", int(tuning.ReadTimeout/time.Second))) * time.Second
	return tuning, nil
}

// peerSeeds is the YAML document shape for a peer seed file: a flat list
// under a single "peers" key.
type peerSeeds struct {
	Peers []string `yaml:"peers"`
}

// LoadPeerSeeds reads path as YAML and returns its peer list. A missing
// or empty path is not an error; it yields no seeds.
func LoadPeerSeeds(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "config: read peer seeds")
	}

	var seeds peerSeeds
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, errors.Wrap(err, "config: parse peer seeds")
	}
	return seeds.Peers, nil
}
