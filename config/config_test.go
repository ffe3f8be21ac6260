package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"miner/constants"
	"miner/graph"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// TestLoadCreatesDefault verifies first-run behaviour.
func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", constants.ConfigFile)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	require.Equal(t, graph.Cuckatoo31.Name, onDisk.Graph.Profile)
}

func TestLoadOverrides(t *testing.T) {
	path := write(t, "miner.yaml", `
stratum:
  address: pool.example.org:3416
  username: alice.rig1
graph:
  profile: cuckatoo18
  trimming_rounds: 12
scratch:
  node_bytes: 4096
storage:
  bitmap_path: /tmp/edges.bin
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "pool.example.org:3416", cfg.Stratum.Address)
	require.Equal(t, "alice.rig1", cfg.Stratum.Username)
	require.Equal(t, "/tmp/edges.bin", cfg.Storage.BitmapPath)
	require.Equal(t, constants.DatabaseFile, cfg.Storage.DatabasePath)

	p := cfg.Params()
	require.Equal(t, uint8(18), p.EdgeBits)
	require.Equal(t, 12, p.TrimmingRounds)

	sc := cfg.TrimScratch()
	require.Equal(t, 4096, sc.NodeBytes)
	require.Equal(t, constants.Cuckatoo18SecondaryLocalRAMSize, sc.EdgeBytes)
}

func TestLoadRejects(t *testing.T) {
	cases := map[string]struct {
		body string
		err  error
	}{
		"no port":     {"stratum: {address: pool}", ErrInvalidAddress},
		"bad profile": {"graph: {profile: cuckatoo29}", ErrUnknownProfile},
		"bad scratch": {"scratch: {edge_bytes: 1000}", ErrInvalidScratch},
		"bad user":    {`stratum: {username: 'a"b'}`, ErrInvalidUsername},
		"neg rounds":  {"graph: {trimming_rounds: -1}", ErrInvalidRounds},
	}
	for name, c := range cases {
		_, err := Load(write(t, "miner.yaml", c.body))
		require.ErrorIs(t, err, c.err, name)
	}
}

func TestValidateAddress(t *testing.T) {
	good := []string{"localhost:1", "127.0.0.1:3416", "pool.example.org:65535"}
	bad := []string{"", ":3416", "host:", "host:0", "host:03416", "host:65536", "host:12ab", "host:80\t", "host"}
	for _, a := range good {
		require.NoError(t, ValidateAddress(a), a)
	}
	for _, a := range bad {
		require.ErrorIs(t, ValidateAddress(a), ErrInvalidAddress, a)
	}
}

// -----------------------------------------------------------------------------
// ░░ Legacy Settings File ░░
// -----------------------------------------------------------------------------

func TestLoadLegacy(t *testing.T) {
	cfg, err := LoadLegacy(write(t, constants.StratumSettingsFile, "mwc.pool:3416\r\nbob\r\n"))
	require.NoError(t, err)
	require.Equal(t, "mwc.pool:3416", cfg.Stratum.Address)
	require.Equal(t, "bob", cfg.Stratum.Username)

	cfg, err = LoadLegacy(write(t, constants.StratumSettingsFile, "mwc.pool:3416"))
	require.NoError(t, err)
	require.Empty(t, cfg.Stratum.Username)
}

func TestLoadLegacyRejects(t *testing.T) {
	_, err := LoadLegacy(write(t, constants.StratumSettingsFile, ""))
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = LoadLegacy(write(t, constants.StratumSettingsFile, "mwc.pool:99999\n"))
	require.ErrorIs(t, err, ErrInvalidAddress)

	_, err = LoadLegacy(write(t, constants.StratumSettingsFile, "mwc.pool:3416\nba\\d\n"))
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = LoadLegacy(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}
