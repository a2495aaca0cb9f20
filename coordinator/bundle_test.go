package coordinator

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadSpeculativeConfig_AcceptsWellFormedFile(t *testing.T) {
	path := writeTempConfig(t, `
draft_model_type: ngram
num_speculative_tokens: 5
ngram_prompt_lookup_min: 1
ngram_prompt_lookup_max: 3
acceptance_method: rejection
vocab_size: 32000
`)

	cfg, err := LoadSpeculativeConfig(path)
	if err != nil {
		t.Fatalf("LoadSpeculativeConfig: %v", err)
	}
	if cfg.NumSpeculativeTokens != 5 {
		t.Errorf("expected num_speculative_tokens=5, got %d", cfg.NumSpeculativeTokens)
	}
}

func TestLoadSpeculativeConfig_RejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, `
draft_model_type: ngram
ngram_prompt_lookup_max: 3
acceptance_method: rejection
vocab_size: 100
this_field_does_not_exist: true
`)

	if _, err := LoadSpeculativeConfig(path); err == nil {
		t.Fatal("expected an unknown field to be rejected under strict decoding")
	}
}

func TestLoadSpeculativeConfig_RejectsConfigThatFailsValidation(t *testing.T) {
	path := writeTempConfig(t, `
draft_model_type: not-a-real-type
acceptance_method: rejection
vocab_size: 100
`)

	if _, err := LoadSpeculativeConfig(path); err == nil {
		t.Fatal("expected an invalid draft_model_type to fail Validate()")
	}
}

func TestLoadSpeculativeConfig_MissingFileReturnsError(t *testing.T) {
	if _, err := LoadSpeculativeConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected a missing file to return an error")
	}
}
