package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ent0n29/babel/internal/app"
	"github.com/ent0n29/babel/internal/config"
	"github.com/ent0n29/babel/internal/translate"
)

type probeOptions struct {
	attempts int
	delay    time.Duration
	language string
	asJSON   bool
}

func newProbeCmd() *cobra.Command {
	var opts probeOptions
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check translator credentials and quota",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := configureLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			var t translate.Translator
			if a := app.NewAzureTranslator(cfg); a != nil {
				t = a
			}
			res := translate.Probe(ctx, t, translate.ProbeConfig{
				Attempts: opts.attempts,
				Delay:    opts.delay,
				Language: opts.language,
			})
			if err := writeProbe(cmd.OutOrStdout(), res, opts.asJSON); err != nil {
				return err
			}
			if res.Status == translate.ProbeError {
				return fmt.Errorf("translator probe failed: %s", res.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.attempts, "attempts", 3, "number of test translations")
	cmd.Flags().DurationVar(&opts.delay, "delay", 2*time.Second, "delay between attempts")
	cmd.Flags().StringVar(&opts.language, "lang", "es", "target language for the test translation")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	return cmd
}

func writeProbe(w io.Writer, res translate.ProbeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(w, "status:   %s\n", res.Status)
	fmt.Fprintf(w, "message:  %s\n", res.Message)
	if res.Details != "" {
		fmt.Fprintf(w, "details:  %s\n", res.Details)
	}
	fmt.Fprintf(w, "attempts: %d\n", res.Attempts)
	for _, rec := range recommendations(res) {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
	return nil
}

func recommendations(res translate.ProbeResult) []string {
	switch {
	case res.QuotaExceeded != nil && *res.QuotaExceeded:
		return []string{
			"wait for the quota window to reset before retrying",
			"consider a higher Azure Translator pricing tier",
			"cached translations keep serving repeated phrases meanwhile",
		}
	case res.Status == translate.ProbeError:
		return []string{
			"verify AZURE_TRANSLATOR_KEY is set and valid",
			"verify AZURE_TRANSLATOR_REGION matches the resource region",
		}
	}
	return nil
}
