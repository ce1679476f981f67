package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"plandraft/internal/config"
	"plandraft/internal/drafting"
	"plandraft/internal/generator"
	"plandraft/internal/logger"
	"plandraft/internal/plan"
	"plandraft/internal/retrieval"
	"plandraft/internal/server"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "plandraft",
		Short: "Draft and validate subscription plan proposals",
	}
	configPath  string
	outPath     string
	reportPath  string
	maxAttempts int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")

	generateCmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the document to this path (.yaml or .json)")
	generateCmd.Flags().StringVar(&reportPath, "report", "", "Write a JSON attempt report to this path")
	generateCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Override generation.max_attempts (1-6)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(abCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(examplesCmd)
	rootCmd.AddCommand(serveCmd)
}

type deps struct {
	cfg       *config.Config
	log       *logger.Logger
	validator *plan.Validator
	retriever retrieval.Retriever
	gen       *generator.Generator
}

// initDeps wires config, logging, retrieval and the drafting backend.
func initDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	corpus, err := retrieval.LoadCorpus(cfg.Corpus.Path)
	if err != nil {
		return nil, err
	}
	retriever, err := retrieval.NewRetriever(ctx, corpus, retrieval.EmbedderOptions{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		BaseURL:   cfg.Embedding.BaseURL,
	}, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	backend, err := drafting.NewBackend(ctx, drafting.Options{
		Provider:        cfg.AI.Provider,
		APIKey:          cfg.AI.APIKey,
		Model:           cfg.AI.Model,
		BaseURL:         cfg.AI.BaseURL,
		Temperature:     cfg.AI.Temperature,
		Timeout:         cfg.AI.Timeout,
		FallbackOffline: cfg.AI.FallbackOffline,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create drafting backend: %w", err)
	}
	if backend.Name() == "offline" && !strings.EqualFold(cfg.AI.Provider, "offline") {
		lg.Warn("no credentials for drafting provider, using offline fallback", "provider", cfg.AI.Provider)
	}

	validator := plan.NewValidator(cfg.Rules)
	return &deps{
		cfg:       cfg,
		log:       lg,
		validator: validator,
		retriever: retriever,
		gen:       generator.New(backend, retriever, validator, lg),
	}, nil
}

var osExit = os.Exit

// exit flushes the logger first; os.Exit skips deferred calls.
func (d *deps) exit(code int) {
	d.log.Sync()
	osExit(code)
}

func (d *deps) options() generator.Options {
	return generator.Options{
		MaxAttempts: d.cfg.Generation.MaxAttempts,
		Examples:    d.cfg.Generation.Examples,
		EnableAB:    d.cfg.Generation.EnableAB,
	}
}

func printWarnings(warnings, advisories []string) {
	for _, w := range warnings {
		fmt.Printf("⚠️  %s\n", w)
	}
	for _, a := range advisories {
		fmt.Printf("💡 %s\n", a)
	}
}

var generateCmd = &cobra.Command{
	Use:   "generate [brief]",
	Short: "Draft a validated plan document from a brief",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		d, err := initDeps(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer d.log.Sync()

		opts := d.options()
		if maxAttempts > 0 {
			opts.MaxAttempts = maxAttempts
		}

		fmt.Println("🚀 Drafting plans...")
		start := time.Now()
		res, err := d.gen.Generate(ctx, strings.Join(args, " "), opts)
		if err != nil {
			log.Fatalf("Generation failed: %v", err)
		}
		if res.Accepted() {
			fmt.Printf("✅ Valid document after %d attempt(s) in %v.\n", res.Attempts, time.Since(start).Round(time.Millisecond))
		} else {
			fmt.Printf("⚠️  Returning degraded result after %d attempt(s).\n", res.Attempts)
		}
		printWarnings(res.Warnings, res.Advisories)

		if reportPath != "" {
			if err := generator.NewReport(res).Save(reportPath); err != nil {
				log.Fatalf("Failed to save report: %v", err)
			}
			fmt.Printf("📊 Report written to %s\n", reportPath)
		}

		if res.Document == nil {
			fmt.Println("❌ No parseable document was produced. Last draft:")
			fmt.Println(res.RawDraft)
			d.exit(2)
		}
		out, err := plan.Marshal(res.Document)
		if err != nil {
			log.Fatalf("Failed to serialize document: %v", err)
		}
		fmt.Println(string(out))

		if outPath != "" {
			if err := plan.SaveDocument(outPath, res.Document); err != nil {
				log.Fatalf("Failed to save document: %v", err)
			}
			fmt.Printf("💾 Saved to %s\n", outPath)
		}
	},
}

var abCmd = &cobra.Command{
	Use:   "ab [brief]",
	Short: "Draft an affordability-focused and a premium-focused proposal side by side",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		d, err := initDeps(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer d.log.Sync()

		fmt.Println("🚀 Drafting A/B proposals...")
		ab, err := d.gen.GenerateAB(ctx, strings.Join(args, " "), d.options())
		if err != nil {
			log.Fatalf("A/B generation failed: %v", err)
		}
		for _, p := range ab.Proposals {
			fmt.Printf("\n===== Variant %s: %s =====\n", p.Label, p.Focus)
			printWarnings(p.Result.Warnings, p.Result.Advisories)
			if p.Result.Document != nil {
				out, err := plan.Marshal(p.Result.Document)
				if err != nil {
					log.Fatalf("Failed to serialize document: %v", err)
				}
				fmt.Println(string(out))
			}
			fmt.Println("Rationale:")
			fmt.Println(p.Rationale)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a YAML or JSON plan document",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		doc, err := plan.LoadDocument(args[0])
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		v := plan.NewValidator(cfg.Rules)
		errs := v.Validate(doc)
		if len(errs) == 0 {
			fmt.Printf("✅ %s is valid (%d plans).\n", args[0], len(doc.Plans))
			printWarnings(nil, v.Advise(doc))
			return
		}
		fmt.Printf("❌ %d problem(s) in %s:\n", len(errs), args[0])
		for _, e := range errs {
			fmt.Printf("  - [%s] %s\n", e.Kind, e.Error())
		}
		os.Exit(1)
	},
}

var examplesCmd = &cobra.Command{
	Use:   "examples [brief]",
	Short: "Show the grounding examples retrieved for a brief",
	Args:  cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		d, err := initDeps(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer d.log.Sync()

		examples, err := d.retriever.Retrieve(ctx, strings.Join(args, " "), d.cfg.Generation.Examples)
		if err != nil {
			log.Fatalf("Retrieval failed: %v", err)
		}
		fmt.Println(retrieval.PromptContext(examples))
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve plan generation over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := initDeps(ctx)
		if err != nil {
			log.Fatal(err)
		}
		defer d.log.Sync()

		srv := server.New(server.Config{
			Addr:              d.cfg.HTTP.Addr,
			ReadHeaderTimeout: d.cfg.HTTP.ReadHeaderTimeout,
			ShutdownTimeout:   d.cfg.HTTP.ShutdownTimeout,
			CORSOrigins:       d.cfg.HTTP.CORSOrigins,
		}, server.NewHandler(d.gen, d.options()), d.log)

		fmt.Printf("🌐 Listening on %s\n", d.cfg.HTTP.Addr)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	},
}
