// Package config loads miner settings from YAML, or from the legacy
// two-line stratum settings file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"miner/constants"
	"miner/graph"
	"miner/trimmer"
)

var (
	ErrInvalidAddress  = errors.New("config: stratum address must be host:port with port 1-65535")
	ErrInvalidUsername = errors.New("config: stratum username must be printable without '\"' or '\\'")
	ErrUnknownProfile  = errors.New("config: unknown graph profile")
	ErrInvalidScratch  = errors.New("config: scratch sizes must be zero or a power of two >= 8")
	ErrInvalidRounds   = errors.New("config: trimming rounds must not be negative")
)

// Config is the full miner configuration.
type Config struct {
	Stratum StratumConfig `yaml:"stratum"`
	Graph   GraphConfig   `yaml:"graph"`
	Scratch ScratchConfig `yaml:"scratch"`
	Storage StorageConfig `yaml:"storage"`
}

type StratumConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
}

type GraphConfig struct {
	Profile string `yaml:"profile"`
	// TrimmingRounds overrides the profile's round count when positive.
	TrimmingRounds int `yaml:"trimming_rounds"`
}

// ScratchConfig sizes the trimming buffers; zero picks the profile default.
type ScratchConfig struct {
	NodeBytes int `yaml:"node_bytes"`
	EdgeBytes int `yaml:"edge_bytes"`
}

type StorageConfig struct {
	BitmapPath   string `yaml:"bitmap_path"`
	DatabasePath string `yaml:"database_path"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		Stratum: StratumConfig{Address: "127.0.0.1:3416"},
		Graph:   GraphConfig{Profile: graph.Cuckatoo31.Name},
		Storage: StorageConfig{
			BitmapPath:   constants.EdgesBitmapFile,
			DatabasePath: constants.DatabaseFile,
		},
	}
}

// Load reads path, creating it with defaults if it does not exist, and
// validates the result.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return Config{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory: %w", err)
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadLegacy reads a stratum settings file: the pool address on the first
// line and an optional username on the second. Everything else is default.
func LoadLegacy(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, constants.StratumSettingsMaxLineSize), constants.StratumSettingsMaxLineSize)

	cfg := Default()
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		return Config{}, ErrInvalidAddress
	}
	cfg.Stratum.Address = strings.TrimSuffix(sc.Text(), "\r")
	if sc.Scan() {
		cfg.Stratum.Username = strings.TrimSuffix(sc.Text(), "\r")
	}
	if err := sc.Err(); err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ============================================================================
// VALIDATION
// ============================================================================

// Validate checks every field.
func (c Config) Validate() error {
	if err := ValidateAddress(c.Stratum.Address); err != nil {
		return err
	}
	if err := ValidateUsername(c.Stratum.Username); err != nil {
		return err
	}
	if _, ok := graph.Profile(c.Graph.Profile); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProfile, c.Graph.Profile)
	}
	if c.Graph.TrimmingRounds < 0 {
		return ErrInvalidRounds
	}
	for _, n := range []int{c.Scratch.NodeBytes, c.Scratch.EdgeBytes} {
		if n != 0 && (n < 8 || n&(n-1) != 0) {
			return ErrInvalidScratch
		}
	}
	return nil
}

// ValidateAddress accepts host:port where host is non-empty and port is a
// decimal in 1..65535 without a leading zero.
func ValidateAddress(addr string) error {
	host, port, ok := strings.Cut(addr, ":")
	if !ok || host == "" || port == "" || !printable(addr) {
		return ErrInvalidAddress
	}
	if port[0] == '0' {
		return ErrInvalidAddress
	}
	for i := 0; i < len(port); i++ {
		if port[i] < '0' || port[i] > '9' {
			return ErrInvalidAddress
		}
	}
	n, err := strconv.ParseUint(port, 10, 16)
	if err != nil || n == 0 {
		return ErrInvalidAddress
	}
	return nil
}

// ValidateUsername rejects characters that would need escaping on the wire.
func ValidateUsername(user string) error {
	if !printable(user) || strings.ContainsAny(user, `"\`) {
		return ErrInvalidUsername
	}
	return nil
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// ============================================================================
// DERIVED SETTINGS
// ============================================================================

// Params returns the graph profile with any round override applied.
func (c Config) Params() graph.Params {
	p, _ := graph.Profile(c.Graph.Profile)
	if c.Graph.TrimmingRounds > 0 {
		p.TrimmingRounds = c.Graph.TrimmingRounds
	}
	return p
}

// TrimScratch returns the scratch budget, falling back to the profile default.
func (c Config) TrimScratch() trimmer.Scratch {
	sc := trimmer.DefaultScratch(c.Params())
	if c.Scratch.NodeBytes != 0 {
		sc.NodeBytes = c.Scratch.NodeBytes
	}
	if c.Scratch.EdgeBytes != 0 {
		sc.EdgeBytes = c.Scratch.EdgeBytes
	}
	return sc
}
