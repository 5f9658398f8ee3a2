package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/config"
	"github.com/sells-group/company-intel/internal/db"
	"github.com/sells-group/company-intel/internal/discover"
	"github.com/sells-group/company-intel/internal/fetch"
	"github.com/sells-group/company-intel/internal/filings"
	"github.com/sells-group/company-intel/internal/pipeline"
	"github.com/sells-group/company-intel/internal/resilience"
	"github.com/sells-group/company-intel/internal/search"
	"github.com/sells-group/company-intel/internal/store"
	anthropicpkg "github.com/sells-group/company-intel/pkg/anthropic"
	"github.com/sells-group/company-intel/pkg/jina"
)

// enhancerEnv holds the store, the filings pool and the Enhancer needed by
// the enhance/status/serve commands.
type enhancerEnv struct {
	Store    store.Store
	Filings  db.Pool // may be nil
	Enhancer *pipeline.Enhancer
}

// Close releases resources held by the environment.
func (e *enhancerEnv) Close() {
	if e.Filings != nil {
		e.Filings.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// newGate builds the process-wide gate. Only search is retried; fetch and
// LLM failures degrade their stage instead.
func newGate(c *config.Config) *resilience.SpacingGate {
	searchRetry := resilience.DefaultRetryConfig()
	if c.Search.MaxAttempts > 0 {
		searchRetry.MaxAttempts = c.Search.MaxAttempts
	}
	return resilience.NewSpacingGate(map[string]resilience.ServiceLimits{
		resilience.ServiceSearch: {
			Spacing: time.Duration(c.Gate.SearchSpacingMs) * time.Millisecond,
			Retry:   searchRetry,
		},
		resilience.ServiceFetch: {
			Spacing: time.Duration(c.Gate.FetchSpacingMs) * time.Millisecond,
			Retry:   resilience.NoRetry(),
		},
		resilience.ServiceLLM: {
			Spacing: time.Duration(c.Gate.LLMSpacingMs) * time.Millisecond,
			Retry:   resilience.NoRetry(),
		},
	})
}

// initEnhancer connects the store and the filings database, builds every
// client, and wires the Enhancer. Callers should defer env.Close().
func initEnhancer(ctx context.Context, mode string) (*enhancerEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &enhancerEnv{Store: st}

	pool, err := db.Connect(ctx, cfg.FilingsURL(), db.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "connect filings database")
	}
	env.Filings = pool

	denylist, err := discover.LoadDenylist(cfg.Search.DenylistFile)
	if err != nil {
		env.Close()
		return nil, err
	}

	gate := newGate(cfg)
	jinaClient := jina.NewClient(cfg.Jina.Key,
		jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL),
		jina.WithTimeout(time.Duration(cfg.Search.TimeoutSecs)*time.Second),
	)
	fetcher := fetch.New(gate,
		fetch.WithTimeout(time.Duration(cfg.Fetch.TimeoutSecs)*time.Second),
		fetch.WithUserAgent(cfg.Fetch.UserAgent),
	)
	llm := anthropicpkg.NewClient(cfg.Anthropic.Key,
		anthropicpkg.WithTimeout(time.Duration(cfg.Anthropic.TimeoutSec)*time.Second),
		anthropicpkg.WithMaxRetries(0),
	)
	model := cfg.Anthropic.Model

	env.Enhancer = pipeline.New(pipeline.Deps{
		Records: st,
		Credits: st,
		Filings: filings.NewPostgresProvider(pool, filings.Tables{
			Filings:   cfg.Filings.FilingsTable,
			Companies: cfg.Filings.CompaniesTable,
		}),
		Discoverer:  discover.New(search.New(jinaClient, gate), denylist),
		Selector:    pipeline.NewSiteSelector(llm, gate, model),
		Crawler:     pipeline.NewSiteCrawler(fetcher, cfg.Pipeline.CrawlPageBudget, cfg.Pipeline.PageChars),
		Validator:   pipeline.NewNewsValidator(llm, gate, model, fetcher, cfg.Pipeline.ArticleChars, cfg.Pipeline.MaxNewsArticles),
		Summarizer:  pipeline.NewLLMSummarizer(llm, gate, model, cfg.Pipeline.SummaryMaxTokens, cfg.Pipeline.PageChars),
		RecentLimit: cfg.Filings.RecentLimit,
	})

	zap.L().Info("enhancer ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("model", model),
		zap.Int("denylist", denylist.Len()),
	)
	return env, nil
}
