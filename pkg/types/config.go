// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ProviderName selects the model provider backend.
type ProviderName string

const (
	ProviderClaude ProviderName = "claude"
	ProviderOpenAI ProviderName = "openai"
	ProviderVertex ProviderName = "vertex"
)

// AIConfig holds settings for the generative model provider.
type AIConfig struct {
	// Provider selects the backend: claude, openai, or vertex.
	Provider ProviderName `json:"provider" yaml:"provider"`

	// Model is the model identifier used for the main conversation.
	Model string `json:"model" yaml:"model"`

	// EvaluatorModel is the model used for completion checks. Empty means Model.
	EvaluatorModel string `json:"evaluator_model,omitempty" yaml:"evaluator_model,omitempty"`

	// APIKey authenticates against claude and openai backends.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint (OpenAI-compatible gateways, test servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// ProjectID and Region address Vertex AI.
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`

	// MaxTokens bounds a single response (default 8192).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// ThinkingBudget enables extended reasoning on claude when positive.
	ThinkingBudget int `json:"thinking_budget,omitempty" yaml:"thinking_budget,omitempty"`

	// MaxRetries is the number of evaluator retry attempts (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StoreConfig holds settings for the session store.
type StoreConfig struct {
	// Path is the SQLite database file (default data/sessions.db).
	Path string `json:"path" yaml:"path"`
}

// OrchestrationConfig tunes the writing loop.
type OrchestrationConfig struct {
	// MaxSections caps writing-loop iterations (default 40).
	MaxSections int `json:"max_sections" yaml:"max_sections"`

	// MinSections is the floor for both the estimated section count and the
	// evaluator threshold (default 5).
	MinSections int `json:"min_sections" yaml:"min_sections"`

	// CheckRatio is the fraction of estimated sections after which the
	// completion evaluator engages (default 0.6).
	CheckRatio float64 `json:"check_ratio" yaml:"check_ratio"`
}

// WithDefaults fills zero fields with the default tuning.
func (c OrchestrationConfig) WithDefaults() OrchestrationConfig {
	if c.MaxSections <= 0 {
		c.MaxSections = 40
	}
	if c.MinSections <= 0 {
		c.MinSections = 5
	}
	if c.CheckRatio <= 0 {
		c.CheckRatio = 0.6
	}
	return c
}

// DocumentBackend selects where finished articles are handed off.
type DocumentBackend string

const (
	DocumentsNone      DocumentBackend = "none"
	DocumentsFile      DocumentBackend = "file"
	DocumentsFirestore DocumentBackend = "firestore"
	DocumentsGCS       DocumentBackend = "gcs"
)

// DocumentStoreConfig holds settings for the article hand-off.
type DocumentStoreConfig struct {
	Backend DocumentBackend `json:"backend" yaml:"backend"`

	// Dir is the output directory for the file backend (default output/articles).
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// ProjectID is the GCP project for firestore and gcs backends.
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`

	// Collection is the Firestore collection (default articles).
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`

	// Bucket is the Cloud Storage bucket for the gcs backend.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
}

// WebhookConfig configures CloudEvents delivery of progress events.
type WebhookConfig struct {
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// EngineConfig groups all configuration for the engine.
type EngineConfig struct {
	AI            AIConfig            `json:"ai" yaml:"ai"`
	Store         StoreConfig         `json:"store" yaml:"store"`
	Orchestration OrchestrationConfig `json:"orchestration" yaml:"orchestration"`
	Documents     DocumentStoreConfig `json:"documents" yaml:"documents"`
	Webhook       WebhookConfig       `json:"webhook" yaml:"webhook"`
	LogLevel      string              `json:"log_level" yaml:"log_level"`
}
