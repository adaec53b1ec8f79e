package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/acquire"
	"github.com/pdiddy/litscout/internal/container"
	"github.com/pdiddy/litscout/internal/enrich"
	"github.com/pdiddy/litscout/internal/httputil"
	"github.com/pdiddy/litscout/internal/llm"
	"github.com/pdiddy/litscout/internal/pdftext"
	"github.com/pdiddy/litscout/internal/resilience"
	"github.com/pdiddy/litscout/internal/search"
	"github.com/pdiddy/litscout/internal/store"
	"github.com/pdiddy/litscout/pkg/types"
)

// app holds the collaborators shared by subcommands for one invocation.
// One resilience State spans the whole run, so breakers, cooldowns and the
// enriched-once set apply across stages.
type app struct {
	cfg     types.PipelineConfig
	store   *store.Store
	state   *resilience.State
	gateway httputil.Gateway
	llm     llm.Backend
	logger  *zap.Logger
}

// newApp loads configuration and opens the store. Configuration problems
// are returned before anything touches the network.
func newApp(ctx context.Context, withLLM bool) (*app, error) {
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		store:  s,
		logger: logger,
		state: resilience.NewState(resilience.Options{
			FetchCooldown:    cfg.Enrich.Cooldown,
			PendingThreshold: cfg.Resolve.PendingThreshold,
			PendingCooldown:  cfg.Resolve.PendingCooldown,
			BlockList:        s,
		}),
	}

	if cfg.Gateway.Proxy != "" {
		gw, err := httputil.NewProxyGateway(cfg.Gateway.Proxy, cfg.Gateway, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		a.gateway = gw
	} else {
		a.gateway = httputil.NewDirectGateway(cfg.Gateway, logger)
	}

	if withLLM {
		backend, err := llm.New(ctx, cfg.AI)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("configuring llm: %w", err)
		}
		a.llm = backend
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) enrichPipeline() *enrich.Pipeline {
	return enrich.NewPipeline(a.gateway, a.llm, a.state, a.cfg.Enrich, a.logger)
}

// primary returns the configured paginated provider. loadConfig has
// already rejected unknown names.
func (a *app) primary() search.Primary {
	if a.cfg.Search.Primary == search.OpenAlexName {
		return search.NewOpenAlex(a.cfg.Search, a.cfg.Resolve.OpenAlexEmail, a.state, a.logger)
	}
	return search.NewSemanticScholar(a.cfg.Search, a.state, a.logger)
}

// secondary returns the configured fallback provider, or nil for "none".
func (a *app) secondary() search.Secondary {
	switch a.cfg.Search.Secondary {
	case search.ArxivName:
		return search.NewArxiv(a.cfg.Search, a.logger)
	case "none":
		return nil
	default:
		return search.NewScholar(a.gateway, a.logger)
	}
}

// resolver wires the native PDF extractor, backed up by pdftotext in a
// container when resolve.pdftotext_image is set and a runtime is present.
func (a *app) resolver(ctx context.Context) *acquire.Resolver {
	chain := pdftext.Chain{pdftext.Native{}}
	if image := a.cfg.Resolve.PDFTextImage; image != "" {
		if c, err := containerExtractor(ctx, image); err != nil {
			a.logger.Warn("container PDF extraction disabled", zap.Error(err))
		} else {
			chain = append(chain, c)
		}
	}

	r := acquire.NewResolver(a.gateway, chain, a.state, a.cfg.Resolve, a.logger)
	r.Store = a.store
	if a.cfg.Resolve.OpenAlexEmail != "" {
		r.OpenAlex = acquire.NewOpenAlex(nil, a.cfg.Resolve.OpenAlexEmail)
	}
	return r
}

func containerExtractor(ctx context.Context, image string) (*pdftext.Container, error) {
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return pdftext.NewContainer(ctx, rt, image)
}
