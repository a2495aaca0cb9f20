package coordinator

import "sort"

// SpeculativeConfig holds the configuration a Factory needs to assemble a
// StepDriver/NonDriverLoop pair, loadable from a YAML file via
// LoadSpeculativeConfig.
//
// Grounded on the teacher's PolicyBundle (sim/bundle.go): a flat struct of
// yaml-tagged fields plus a Validate() pass. All fields are plain values, so
// an omitted key reads as its zero value.
type SpeculativeConfig struct {
	DraftModelType          string `yaml:"draft_model_type"`
	NumSpeculativeTokens    int64  `yaml:"num_speculative_tokens"`
	NgramPromptLookupMin    int    `yaml:"ngram_prompt_lookup_min"`
	NgramPromptLookupMax    int    `yaml:"ngram_prompt_lookup_max"`
	DraftTensorParallelSize int    `yaml:"draft_tensor_parallel_size"`

	DisableMQAScorer  bool  `yaml:"disable_mqa_scorer"`
	DisableByBatchSize int64 `yaml:"disable_by_batch_size"`

	AcceptanceMethod   string  `yaml:"acceptance_method"`
	PosteriorThreshold float64 `yaml:"posterior_threshold"`
	PosteriorAlpha     float64 `yaml:"posterior_alpha"`

	DisableLogprobs bool `yaml:"disable_logprobs"`
	DisableLogStats bool `yaml:"disable_log_stats"`
	MaxLogprobs     int  `yaml:"max_logprobs"`

	DeepseekMTPNumPredict int `yaml:"deepseek_mtp_num_predict"`

	// Target/draft attributes consulted by the MQA-scorer fallback rule.
	AttentionBackendIsFlash bool  `yaml:"attention_backend_is_flash"`
	DraftMaxModelLen        int64 `yaml:"draft_max_model_len"`
	TargetMaxModelLen       int64 `yaml:"target_max_model_len"`
	TargetIsEagerMode       bool  `yaml:"target_is_eager_mode"`

	VocabSize int64 `yaml:"vocab_size"`
}

// Valid name registries. Unexported to prevent external mutation; used by
// Validate() and ValidAcceptanceMethodNames()/ValidDraftModelTypeNames().
var (
	validAcceptanceMethods = map[string]bool{"rejection": true, "typical_acceptance": true}
	validDraftModelTypes   = map[string]bool{
		"ngram": true, "mlp_speculator": true, "medusa": true,
		"eagle": true, "deepseek_mtp": true, "multi_step": true,
	}
)

// IsValidAcceptanceMethod reports whether name is a recognized acceptance method.
func IsValidAcceptanceMethod(name string) bool { return validAcceptanceMethods[name] }

// IsValidDraftModelType reports whether name is a recognized draft model type.
func IsValidDraftModelType(name string) bool { return validDraftModelTypes[name] }

// ValidAcceptanceMethodNames returns sorted valid acceptance method names.
func ValidAcceptanceMethodNames() []string { return sortedKeys(validAcceptanceMethods) }

// ValidDraftModelTypeNames returns sorted valid draft model type names.
func ValidDraftModelTypeNames() []string { return sortedKeys(validDraftModelTypes) }

func sortedKeys(m map[string]bool) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks that the configuration describes a combination the
// coordinator can actually run, returning a *ConfigurationError describing
// the first problem found.
func (c *SpeculativeConfig) Validate() error {
	if c.NgramPromptLookupMax == 0 {
		if !validDraftModelTypes[c.DraftModelType] {
			return &ConfigurationError{Reason: "unknown draft_model_type " + quote(c.DraftModelType) + "; valid options: " + joinNames(ValidDraftModelTypeNames())}
		}
	}
	if !validAcceptanceMethods[c.AcceptanceMethod] {
		return &ConfigurationError{Reason: "unknown acceptance_method " + quote(c.AcceptanceMethod) + "; valid options: " + joinNames(ValidAcceptanceMethodNames())}
	}
	if c.AcceptanceMethod == "typical_acceptance" {
		if c.PosteriorThreshold < 0 {
			return &ConfigurationError{Reason: "posterior_threshold must be non-negative"}
		}
		if c.PosteriorAlpha < 0 {
			return &ConfigurationError{Reason: "posterior_alpha must be non-negative"}
		}
	}
	if c.DraftModelType == "eagle" && c.DraftTensorParallelSize > 1 {
		return &ConfigurationError{Reason: "eagle draft models do not support tensor-parallel degree > 1"}
	}
	if c.NumSpeculativeTokens < 0 {
		return &ConfigurationError{Reason: "num_speculative_tokens must be non-negative"}
	}
	if c.VocabSize <= 0 {
		return &ConfigurationError{Reason: "vocab_size must be positive"}
	}
	return nil
}

func quote(s string) string { return "\"" + s + "\"" }

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
