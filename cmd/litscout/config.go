package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/secrets"
	"github.com/pdiddy/litscout/internal/store"
	"github.com/pdiddy/litscout/pkg/types"
)

// setDefaults registers every configuration key with its tuned default so
// config files and LITSCOUT_* variables can override any of them.
func setDefaults(v *viper.Viper) {
	search := types.DefaultSearchConfig()
	v.SetDefault("search.batch_size", search.BatchSize)
	v.SetDefault("search.batch_timeout", search.BatchTimeout)
	v.SetDefault("search.max_transport_retries", search.MaxTransportRetries)
	v.SetDefault("search.transport_retry_delay", search.TransportRetryDelay)
	v.SetDefault("search.rate_limit_retries", search.RateLimitRetries)
	v.SetDefault("search.rate_limit_base", search.RateLimitBase)
	v.SetDefault("search.breaker_cooldown", search.BreakerCooldown)
	v.SetDefault("search.margin", search.Margin)
	v.SetDefault("search.politeness_delay", search.PolitenessDelay)
	v.SetDefault("search.require_abstract", search.RequireAbstract)
	v.SetDefault("search.timeout", search.Timeout)
	v.SetDefault("search.primary", search.Primary)
	v.SetDefault("search.secondary", search.Secondary)

	enrich := types.DefaultEnrichConfig()
	v.SetDefault("enrich.cooldown", enrich.Cooldown)
	v.SetDefault("enrich.cache_mirror", enrich.CacheMirror)
	v.SetDefault("enrich.max_llm_chars", enrich.MaxLLMChars)
	v.SetDefault("enrich.concurrency", enrich.Concurrency)

	resolve := types.DefaultResolveConfig()
	v.SetDefault("resolve.max_requests", resolve.MaxRequests)
	v.SetDefault("resolve.max_depth", resolve.MaxDepth)
	v.SetDefault("resolve.timeout", resolve.Timeout)
	v.SetDefault("resolve.min_pdf_bytes", resolve.MinPDFBytes)
	v.SetDefault("resolve.max_pages", resolve.MaxPages)
	v.SetDefault("resolve.pending_threshold", resolve.PendingThreshold)
	v.SetDefault("resolve.pending_cooldown", resolve.PendingCooldown)
	v.SetDefault("resolve.allowed_html_hosts", []string{})
	v.SetDefault("resolve.pdftotext_image", "")
	v.SetDefault("resolve.require_pdf", false)

	v.SetDefault("gateway.proxy", "")
	v.SetDefault("gateway.host_interval", "1s")
	v.SetDefault("gateway.timeout", "20s")

	v.SetDefault("llm.provider", string(types.LLMNone))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("store.path", store.DefaultPath)
}

// bindEnv maps LITSCOUT_SEARCH_BATCH_SIZE and friends onto dotted keys.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("LITSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadConfig assembles the pipeline configuration from v and the loaded
// secrets. A missing key for the selected LLM provider is reported here as
// an httputil.ErrConfig error, before any network work starts.
func loadConfig(v *viper.Viper, s secrets.Secrets) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig

	cfg.Search = types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   v.GetDuration("search.timeout"),
			UserAgent: types.DefaultUserAgent,
		},
		BatchSize:             v.GetInt("search.batch_size"),
		BatchTimeout:          v.GetDuration("search.batch_timeout"),
		MaxTransportRetries:   v.GetInt("search.max_transport_retries"),
		TransportRetryDelay:   v.GetDuration("search.transport_retry_delay"),
		RateLimitRetries:      v.GetInt("search.rate_limit_retries"),
		RateLimitBase:         v.GetDuration("search.rate_limit_base"),
		BreakerCooldown:       v.GetDuration("search.breaker_cooldown"),
		Margin:                v.GetInt("search.margin"),
		PolitenessDelay:       v.GetDuration("search.politeness_delay"),
		RequireAbstract:       v.GetBool("search.require_abstract"),
		Primary:               strings.ToLower(v.GetString("search.primary")),
		Secondary:             strings.ToLower(v.GetString("search.secondary")),
		SemanticScholarAPIKey: s.Get(secrets.SemanticScholarKey),
	}
	switch cfg.Search.Primary {
	case "semantic_scholar", "openalex":
	default:
		return cfg, fmt.Errorf("%w: unknown search.primary %q", httputil.ErrConfig, cfg.Search.Primary)
	}
	switch cfg.Search.Secondary {
	case "google_scholar", "arxiv", "none":
	default:
		return cfg, fmt.Errorf("%w: unknown search.secondary %q", httputil.ErrConfig, cfg.Search.Secondary)
	}

	cfg.Enrich = types.EnrichConfig{
		Cooldown:    v.GetDuration("enrich.cooldown"),
		CacheMirror: v.GetString("enrich.cache_mirror"),
		MaxLLMChars: v.GetInt("enrich.max_llm_chars"),
		Concurrency: v.GetInt("enrich.concurrency"),
	}

	cfg.Resolve = types.ResolveConfig{
		MaxRequests:      v.GetInt("resolve.max_requests"),
		MaxDepth:         v.GetInt("resolve.max_depth"),
		Timeout:          v.GetDuration("resolve.timeout"),
		MinPDFBytes:      v.GetInt("resolve.min_pdf_bytes"),
		MaxPages:         v.GetInt("resolve.max_pages"),
		PendingThreshold: v.GetInt("resolve.pending_threshold"),
		PendingCooldown:  v.GetDuration("resolve.pending_cooldown"),
		AllowedHTMLHosts: v.GetStringSlice("resolve.allowed_html_hosts"),
		OpenAlexEmail:    s.Get(secrets.OpenAlexEmail),
		PDFTextImage:     v.GetString("resolve.pdftotext_image"),
		RequirePDF:       v.GetBool("resolve.require_pdf"),
	}

	cfg.Gateway = types.GatewayConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   v.GetDuration("gateway.timeout"),
			UserAgent: types.DefaultUserAgent,
		},
		Proxy:        v.GetString("gateway.proxy"),
		HostInterval: v.GetDuration("gateway.host_interval"),
	}

	cfg.AI = types.AIConfig{
		Provider:   types.LLMProvider(strings.ToLower(v.GetString("llm.provider"))),
		Model:      v.GetString("llm.model"),
		Endpoint:   v.GetString("llm.endpoint"),
		MaxRetries: v.GetInt("llm.max_retries"),
	}
	switch cfg.AI.Provider {
	case "", types.LLMNone, types.LLMLocal:
	case types.LLMClaude:
		key, err := s.Require(secrets.AnthropicKey)
		if err != nil {
			return cfg, fmt.Errorf("llm.provider=claude: %w", err)
		}
		cfg.AI.APIKey = key
	case types.LLMGemini:
		key, err := s.Require(secrets.GeminiKey)
		if err != nil {
			return cfg, fmt.Errorf("llm.provider=gemini: %w", err)
		}
		cfg.AI.APIKey = key
	default:
		return cfg, fmt.Errorf("%w: unknown llm.provider %q", httputil.ErrConfig, cfg.AI.Provider)
	}

	cfg.StorePath = v.GetString("store.path")
	return cfg, nil
}
