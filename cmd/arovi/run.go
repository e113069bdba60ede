package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/arovi-health/arovi/config"
	"github.com/arovi-health/arovi/internal/briefing"
	"github.com/arovi-health/arovi/internal/telemetry"
	"github.com/arovi-health/arovi/provider"
	"github.com/arovi-health/arovi/tools/websearch"
)

func runCMD() *cobra.Command {
	var city, state, country, date, cfgPath string

	var run = &cobra.Command{
		Use:   "run",
		Short: "Generate one briefing and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if city == "" {
				return fmt.Errorf("--city is required")
			}
			cfg := config.LoadConfig(cfgPath)

			llm, err := provider.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			searcher, err := searcherFromConfig(cfg.Sources.WebSearch)
			if err != nil {
				return err
			}
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			defer tele.Shutdown()

			engine, err := briefing.NewEngine(cfg, llm, searcher, tele, nil)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.General.MaxProcessingTime > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.General.MaxProcessingTime)
				defer cancel()
			}

			res, err := engine.Run(ctx, briefing.Request{City: city, State: state, Country: country, Date: date})
			if err != nil {
				return err
			}

			fmt.Println(res.Briefing)
			if res.Degraded {
				log.Printf("run %s completed degraded; briefing needs review", res.RunID)
			}
			return nil
		},
	}

	run.Flags().StringVar(&city, "city", "", "target city")
	run.Flags().StringVar(&state, "state", "", "target state or region")
	run.Flags().StringVar(&country, "country", "", "target country (default from config)")
	run.Flags().StringVar(&date, "date", "", "target date YYYY-MM-DD (default today)")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}

func searcherFromConfig(cfg config.WebSearchConfig) (websearch.WebSearcher, error) {
	switch websearch.Provider(cfg.Provider) {
	case websearch.BraveProvider:
		return websearch.NewWebSearcher(websearch.BraveProvider, cfg.BraveAPIKey)
	case websearch.SerperProvider, "":
		return websearch.NewWebSearcher(websearch.SerperProvider, cfg.SerperAPIKey)
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
