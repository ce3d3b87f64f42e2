package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jamesnation/deepsearch/config"
	"github.com/jamesnation/deepsearch/internal/cache"
	"github.com/jamesnation/deepsearch/internal/kv"
	"github.com/jamesnation/deepsearch/internal/ratelimit"
	"github.com/jamesnation/deepsearch/internal/research"
	"github.com/jamesnation/deepsearch/provider"
	"github.com/jamesnation/deepsearch/tools/web_fetch"
	"github.com/jamesnation/deepsearch/tools/web_search"
)

func askCMD() *cobra.Command {
	var cfgPath string
	var quiet bool

	var ask = &cobra.Command{
		Use:   "ask [question]",
		Short: "Research a question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			return runAsk(cmd.Context(), cfg, question, quiet)
		},
	}
	ask.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	ask.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ask
}

func runAsk(ctx context.Context, cfg *config.Config, question string, quiet bool) error {
	var kvStore kv.Store
	if redisStore, err := kv.NewRedis(ctx, cfg.Storage.Redis); err != nil {
		kvStore = kv.NewMemory()
	} else {
		kvStore = redisStore
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(kvStore, cfg.RateLimit, nil)
	}
	var memo *cache.Cache
	if cfg.Cache.Enabled {
		memo = cache.New(kvStore, nil)
	}

	llm, err := provider.NewProvider(cfg.LLM.Providers["openai"])
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey())
	if err != nil {
		return fmt.Errorf("web searcher: %w", err)
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Fetcher), cfg.Fetch.Timeout, cfg.Fetch.MaxChars)
	if err != nil {
		return fmt.Errorf("web fetcher: %w", err)
	}

	metrics := research.NewMetrics(prometheus.NewRegistry())
	controller := research.New(cfg, llm, searcher, fetcher, limiter, memo, metrics, nil)

	sink := research.NewChannelSink(64)
	var wg sync.WaitGroup
	if !quiet {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range sink.Events() {
				switch e.Type {
				case research.EventPlanReady:
					fmt.Printf("-- step %d: %d queries (%s)\n", e.Plan.Step, e.Plan.QueryCount, e.Plan.PlanSummary)
				case research.EventSourcesFound:
					fmt.Printf("-- %s\n", e.Sources.Label)
				case research.EventTokenUsage:
					fmt.Printf("-- tokens so far: %d\n", e.TokenUsage.TotalTokens)
				}
			}
		}()
	}

	result := controller.Run(ctx, question, nil, sink)
	sink.Close()
	wg.Wait()

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range result.Sources {
			fmt.Printf("  - %s (%s)\n", s.Title, s.URL)
		}
	}
	fmt.Printf("\n%d steps, %d tokens\n", result.Steps, result.TotalTokens)
	if result.Degraded {
		return fmt.Errorf("research degraded, answer is best effort")
	}
	return nil
}
