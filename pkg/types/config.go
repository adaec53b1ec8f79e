package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litscout/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the primary provider and the aggregator.
// The defaults were tuned against Semantic Scholar's public rate limits.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// BatchSize is the page size for paginated provider requests (default 40).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// BatchTimeout bounds each page request (default 15s).
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout"`

	// MaxTransportRetries is the retry count for timeouts and transport
	// failures on one page (default 2).
	MaxTransportRetries int `json:"max_transport_retries" yaml:"max_transport_retries"`

	// TransportRetryDelay is the fixed wait between transport retries (default 1s).
	TransportRetryDelay time.Duration `json:"transport_retry_delay" yaml:"transport_retry_delay"`

	// RateLimitRetries is the retry count for HTTP 429 on one page (default 3).
	RateLimitRetries int `json:"rate_limit_retries" yaml:"rate_limit_retries"`

	// RateLimitBase is the backoff unit; retry n waits RateLimitBase*(n+1) (default 2s).
	RateLimitBase time.Duration `json:"rate_limit_base" yaml:"rate_limit_base"`

	// BreakerCooldown is how long the provider breaker stays open (default 15s).
	BreakerCooldown time.Duration `json:"breaker_cooldown" yaml:"breaker_cooldown"`

	// Margin is added to the remaining count to absorb quality-filter
	// rejections (default 20).
	Margin int `json:"margin" yaml:"margin"`

	// PolitenessDelay is the pause between strategies (default 5s).
	PolitenessDelay time.Duration `json:"politeness_delay" yaml:"politeness_delay"`

	// RequireAbstract drops provider records that have no abstract. When
	// false they are kept with PlaceholderSummary.
	RequireAbstract bool `json:"require_abstract" yaml:"require_abstract"`

	// Primary names the paginated provider: "semantic_scholar" (default)
	// or "openalex".
	Primary string `json:"primary" yaml:"primary"`

	// Secondary names the fallback provider: "google_scholar" (default),
	// "arxiv" or "none".
	Secondary string `json:"secondary" yaml:"secondary"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`
}

// DefaultSearchConfig returns the tuned defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		HTTPConfig:          HTTPConfig{Timeout: 15 * time.Second, UserAgent: DefaultUserAgent},
		BatchSize:           40,
		BatchTimeout:        15 * time.Second,
		MaxTransportRetries: 2,
		TransportRetryDelay: time.Second,
		RateLimitRetries:    3,
		RateLimitBase:       2 * time.Second,
		BreakerCooldown:     15 * time.Second,
		Margin:              20,
		PolitenessDelay:     5 * time.Second,
		Primary:             "semantic_scholar",
		Secondary:           "google_scholar",
	}
}

// EnrichConfig holds settings for the abstract enrichment cascade.
type EnrichConfig struct {
	// Cooldown suppresses repeat fetches of the same URL (default 30s).
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`

	// CacheMirror is prefixed to a blocked URL for the single mirror retry.
	CacheMirror string `json:"cache_mirror" yaml:"cache_mirror"`

	// MaxLLMChars caps the sanitized page text handed to the LLM (default 20000).
	MaxLLMChars int `json:"max_llm_chars" yaml:"max_llm_chars"`

	// Concurrency bounds parallel enrichment across papers (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// DefaultEnrichConfig returns the tuned defaults.
func DefaultEnrichConfig() EnrichConfig {
	return EnrichConfig{
		Cooldown:    30 * time.Second,
		CacheMirror: "https://webcache.googleusercontent.com/search?q=cache:",
		MaxLLMChars: 20000,
		Concurrency: 4,
	}
}

// ResolveConfig holds settings for the document resolver.
type ResolveConfig struct {
	// MaxRequests caps fetches across one whole resolution (default 10).
	MaxRequests int `json:"max_requests" yaml:"max_requests"`

	// MaxDepth caps link-following depth (default 2).
	MaxDepth int `json:"max_depth" yaml:"max_depth"`

	// Timeout bounds each fetch (default 8s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MinPDFBytes rejects smaller PDF bodies as error pages (default 10 KiB).
	MinPDFBytes int `json:"min_pdf_bytes" yaml:"min_pdf_bytes"`

	// MaxPages caps PDF text extraction (default 20).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// PendingThreshold is the number of consecutive 202s from one host that
	// opens that host's breaker (default 3).
	PendingThreshold int `json:"pending_threshold" yaml:"pending_threshold"`

	// PendingCooldown is how long a host breaker stays open (default 120s).
	PendingCooldown time.Duration `json:"pending_cooldown" yaml:"pending_cooldown"`

	// AllowedHTMLHosts may return HTML even when a PDF is required.
	AllowedHTMLHosts []string `json:"allowed_html_hosts,omitempty" yaml:"allowed_html_hosts,omitempty"`

	// OpenAlexEmail enables the OpenAlex polite pool and the DOI lookup.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	// PDFTextImage is a container image providing pdftotext. When set and
	// a container runtime is available it backs up the native extractor.
	PDFTextImage string `json:"pdftotext_image,omitempty" yaml:"pdftotext_image,omitempty"`

	// RequirePDF rejects HTML landing pages except on AllowedHTMLHosts.
	RequirePDF bool `json:"require_pdf" yaml:"require_pdf"`
}

// DefaultResolveConfig returns the tuned defaults.
func DefaultResolveConfig() ResolveConfig {
	return ResolveConfig{
		MaxRequests:      10,
		MaxDepth:         2,
		Timeout:          8 * time.Second,
		MinPDFBytes:      10 * 1024,
		MaxPages:         20,
		PendingThreshold: 3,
		PendingCooldown:  120 * time.Second,
	}
}

// GatewayConfig configures how pages are fetched.
type GatewayConfig struct {
	HTTPConfig `yaml:",inline"`

	// Proxy is an optional gateway endpoint; targets are passed as ?url=.
	Proxy string `json:"proxy,omitempty" yaml:"proxy,omitempty"`

	// HostInterval is the minimum spacing between requests to one host (default 1s).
	HostInterval time.Duration `json:"host_interval" yaml:"host_interval"`
}

// LLMProvider selects the LLM backend.
type LLMProvider string

const (
	LLMNone   LLMProvider = "none"
	LLMClaude LLMProvider = "claude"
	LLMGemini LLMProvider = "gemini"
	LLMLocal  LLMProvider = "local"
)

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	Provider LLMProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for cloud providers.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Endpoint is the base URL of a local OpenAI-compatible server.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DefaultUserAgent identifies the tool to remote servers.
const DefaultUserAgent = "litscout/0.1 (+https://github.com/pdiddy/litscout)"

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Search  SearchConfig  `json:"search" yaml:"search"`
	Enrich  EnrichConfig  `json:"enrich" yaml:"enrich"`
	Resolve ResolveConfig `json:"resolve" yaml:"resolve"`
	Gateway GatewayConfig `json:"gateway" yaml:"gateway"`
	AI      AIConfig      `json:"llm" yaml:"llm"`

	// StorePath is the SQLite database file.
	StorePath string `json:"store_path" yaml:"store_path"`
}
