// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

//nolint:revive
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/logging"
	"gopkg.in/yaml.v2"

	"github.com/ava-labs/countervm/codec"
	"github.com/ava-labs/countervm/consts"
	"github.com/ava-labs/countervm/pebble"
	"github.com/ava-labs/countervm/trace"
)

const (
	// DefaultProgramID is the program counters are derived under unless
	// configured otherwise.
	DefaultProgramID = "CBg8WUVoFPdppuTBDzpUpgY3PG4PbzK8S676PQKXvLy6"

	defaultListenAddress        = "127.0.0.1:9650"
	defaultLogLevel             = "info"
	defaultLogFormat            = "auto"
	defaultVerifyCores          = 4
	defaultStreamingBacklogSize = 1_024
)

type Config struct {
	// Logging
	LogLevel          string `json:"logLevel"          yaml:"logLevel"`
	LogDisplayLevel   string `json:"logDisplayLevel"   yaml:"logDisplayLevel"`
	LogFormat         string `json:"logFormat"         yaml:"logFormat"`
	LogDir            string `json:"logDir"            yaml:"logDir"`
	DisableLogDisplay bool   `json:"disableLogDisplay" yaml:"disableLogDisplay"`

	// Storage
	//
	// An empty [DatabaseDir] keeps all state in memory.
	DatabaseDir string        `json:"databaseDir" yaml:"databaseDir"`
	Pebble      pebble.Config `json:"pebble"      yaml:"pebble"`

	// API
	ListenAddress        string   `json:"listenAddress"        yaml:"listenAddress"`
	AllowedOrigins       []string `json:"allowedOrigins"       yaml:"allowedOrigins"`
	AllowedHosts         []string `json:"allowedHosts"         yaml:"allowedHosts"`
	StreamingBacklogSize int      `json:"streamingBacklogSize" yaml:"streamingBacklogSize"`
	MetricsEnabled       bool     `json:"metricsEnabled"       yaml:"metricsEnabled"`

	// Chain
	ChainID     string `json:"chainID"     yaml:"chainID"`
	ProgramID   string `json:"programID"   yaml:"programID"`
	VerifyCores int    `json:"verifyCores" yaml:"verifyCores"`

	// Tracing
	Trace trace.Config `json:"trace" yaml:"trace"`
}

// New returns a [Config] holding every default.
func New() *Config {
	return &Config{
		LogLevel:             defaultLogLevel,
		LogDisplayLevel:      defaultLogLevel,
		LogFormat:            defaultLogFormat,
		Pebble:               pebble.NewDefaultConfig(),
		ListenAddress:        defaultListenAddress,
		AllowedOrigins:       []string{"*"},
		AllowedHosts:         []string{"*"},
		StreamingBacklogSize: defaultStreamingBacklogSize,
		MetricsEnabled:       true,
		ProgramID:            DefaultProgramID,
		VerifyCores:          defaultVerifyCores,
		Trace:                trace.Config{Enabled: false, AppName: consts.Name},
	}
}

// Load reads a JSON or YAML config from [path] over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes a JSON or YAML config over the defaults and verifies it.
func Parse(b []byte) (*Config, error) {
	c := New()
	switch {
	case len(b) == 0:
	case isJSON(b):
		if err := json.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFormat, err)
		}
	default:
		if err := yaml.UnmarshalStrict(b, c); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfigFormat, err)
		}
	}
	return c, c.Verify()
}

func isJSON(b []byte) bool {
	var js map[string]interface{}
	return json.Unmarshal(b, &js) == nil
}

// Verify returns an error if any field cannot be parsed.
func (c *Config) Verify() error {
	if _, err := c.GetLogLevel(); err != nil {
		return err
	}
	if _, err := c.GetLogDisplayLevel(); err != nil {
		return err
	}
	if _, err := c.GetLogFormat(); err != nil {
		return err
	}
	if _, err := c.GetChainID(); err != nil {
		return err
	}
	if _, err := c.GetProgramID(); err != nil {
		return err
	}
	if c.VerifyCores <= 0 {
		return fmt.Errorf("%w: verifyCores=%d", ErrInvalidValue, c.VerifyCores)
	}
	return nil
}

func (c *Config) GetLogLevel() (logging.Level, error) {
	return logging.ToLevel(c.LogLevel)
}

func (c *Config) GetLogDisplayLevel() (logging.Level, error) {
	return logging.ToLevel(c.LogDisplayLevel)
}

func (c *Config) GetLogFormat() (logging.Format, error) {
	return logging.ToFormat(c.LogFormat, os.Stdout.Fd())
}

// GetChainID parses [ChainID]. When unset, the id is derived from the name
// of the VM so every default node agrees on it.
func (c *Config) GetChainID() (ids.ID, error) {
	if len(c.ChainID) == 0 {
		return ids.ID(hashing.ComputeHash256Array([]byte(consts.Name))), nil
	}
	id, err := ids.FromString(c.ChainID)
	if err != nil {
		return ids.Empty, fmt.Errorf("%w: chainID: %w", ErrInvalidValue, err)
	}
	if id == ids.Empty {
		return ids.Empty, fmt.Errorf("%w: chainID is empty", ErrInvalidValue)
	}
	return id, nil
}

func (c *Config) GetProgramID() (codec.Address, error) {
	addr, err := codec.StringToAddress(c.ProgramID)
	if err != nil {
		return codec.EmptyAddress, fmt.Errorf("%w: programID: %w", ErrInvalidValue, err)
	}
	return addr, nil
}

func (c *Config) GetTraceConfig() *trace.Config {
	cfg := c.Trace
	if len(cfg.AppName) == 0 {
		cfg.AppName = consts.Name
	}
	return &cfg
}
