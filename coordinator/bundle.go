package coordinator

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSpeculativeConfig reads and strictly parses a YAML speculative-decoding
// configuration file, then validates it.
//
// Grounded on the teacher's LoadPolicyBundle (sim/bundle.go): strict
// decoding via yaml.v3's KnownFields(true), so a typo'd key is rejected
// instead of silently ignored.
func LoadSpeculativeConfig(path string) (*SpeculativeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading speculative decoding config: %w", err)
	}
	var cfg SpeculativeConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing speculative decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
