package config_test

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ufpa-lsd/blockchain-lsd/internal/config"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadNodeConfigDefaultsOnEmptyPath(t *testing.T) {
	cfg, err := config.LoadNodeConfig("")
	require.NoError(t, err)
	require.Equal(t, config.DefaultNodeConfig(), cfg)
}

func TestLoadNodeConfigParsesTOML(t *testing.T) {
	path := writeTemp(t, "lsd.toml", `
host = "0.0.0.0"
port = 9500
log_path = "/var/log/lsd.log"
log_level = "debug"
`)

	cfg, err := config.LoadNodeConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 9500, cfg.Port)
	require.Equal(t, "0.0.0.0:9500", cfg.Addr())
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMinerTuningDefaultsOnMissingFile(t *testing.T) {
	tuning, err := config.LoadMinerTuning(filepath.Join(t.TempDir(), "missing.properties"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultMinerTuning(), tuning)
}

func TestLoadMinerTuningParsesProperties(t *testing.T) {
	path := writeTemp(t, "miner.properties", "progress_report_every=5000\ndial_timeout_seconds=3\nread_timeout_seconds=4\n")

	tuning, err := config.LoadMinerTuning(path)
	require.NoError(t, err)
	require.Equal(t, 5000, tuning.ProgressReportEvery)
	require.Equal(t, 3*time.Second, tuning.DialTimeout)
	require.Equal(t, 4*time.Second, tuning.ReadTimeout)
}

func TestLoadPeerSeedsParsesYAML(t *testing.T) {
	path := writeTemp(t, "peers.yaml", "peers:\n  - 10.0.0.1:9000\n  - 10.0.0.2:9000\n")

	peers, err := config.LoadPeerSeeds(path)
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000"}, peers)
}

func TestLoadPeerSeedsEmptyPathYieldsNoPeers(t *testing.T) {
	peers, err := config.LoadPeerSeeds("")
	require.NoError(t, err)
	require.Nil(t, peers)
}

func TestLoadPeerSeedsMissingFileYieldsNoPeers(t *testing.T) {
	peers, err := config.LoadPeerSeeds(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Nil(t, peers)
}
