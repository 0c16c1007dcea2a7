// HopeShot aggregates news from several providers, removes duplicates,
// scores articles for uplifting content and stores the results.
//
// Usage:
//
//	hopeshot serve                 # REST API
//	hopeshot fetch --analyze       # one aggregation run from the terminal
//	hopeshot sources --test        # provider configuration and connectivity
//	hopeshot stats                 # stored article statistics
//	hopeshot operator add          # create an API operator account
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/hopeshot/internal/api"
	"github.com/RobinCoderZhao/hopeshot/internal/news/pipeline"
	"github.com/RobinCoderZhao/hopeshot/internal/news/report"
	"github.com/RobinCoderZhao/hopeshot/internal/user"
	"github.com/RobinCoderZhao/hopeshot/pkg/i18n"
)

var version = "dev"

func main() {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:           "hopeshot",
		Short:         "Uplifting news aggregation and scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default hopeshot.yaml)")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(fetchCmd(&cfgPath))
	rootCmd.AddCommand(sourcesCmd(&cfgPath))
	rootCmd.AddCommand(statsCmd(&cfgPath))
	rootCmd.AddCommand(operatorCmd(&cfgPath))
	rootCmd.AddCommand(versionCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfgPath)
		},
	}
}

func runServe(ctx context.Context, cfgPath string) error {
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	server := api.NewServer(api.Options{
		Pipeline:   a.pipeline,
		Users:      a.users,
		JWTSecret:  a.cfg.Auth.JWTSecret,
		TokenTTL:   a.cfg.Auth.TokenTTL,
		CORSOrigin: a.cfg.Server.CORSOrigin,
	})
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.Server.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting REST API server", "port", a.cfg.Server.Port,
			"sources", a.pipeline.Aggregator().AvailableSources(),
			"scoring", a.pipeline.Analyzer() != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func fetchCmd(cfgPath *string) *cobra.Command {
	var (
		req        pipeline.Request
		comparePNG string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Aggregate news once and optionally score it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if comparePNG != "" && !req.Analyze {
				return errors.New("--compare-png requires --analyze")
			}
			lang, ok := i18n.NormalizeLanguage(req.Language)
			if !ok {
				return fmt.Errorf("unsupported language %q", req.Language)
			}
			req.Language = string(lang)
			return runFetch(cmd.Context(), *cfgPath, req, comparePNG, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&req.Query, "query", "q", "", "search query (provider default when empty)")
	cmd.Flags().StringVarP(&req.Language, "language", "l", "en", "article language")
	cmd.Flags().IntVarP(&req.PageSize, "page-size", "n", 20, "articles to return (1-100)")
	cmd.Flags().BoolVarP(&req.Analyze, "analyze", "a", false, "score, store and log the articles")
	cmd.Flags().StringVar(&comparePNG, "compare-png", "", "write a prompt comparison chart to this path")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print the full response as JSON")
	return cmd
}

func runFetch(ctx context.Context, cfgPath string, req pipeline.Request, comparePNG string, outputJSON bool) error {
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	if comparePNG != "" && resp.Analysis != nil {
		summaries, err := report.Compare(resp.Analysis)
		if err != nil {
			return fmt.Errorf("compare prompts: %w", err)
		}
		if err := report.NewChartRenderer().RenderPNG(summaries, comparePNG); err != nil {
			return err
		}
		slog.Info("prompt comparison written", "path", comparePNG, "prompts", len(summaries))
	}

	if outputJSON {
		return printJSON(resp)
	}

	fmt.Printf("📰 %d articles from %v (run %s)\n", resp.TotalArticles, resp.SourcesUsed, resp.RunID)
	for _, f := range resp.SourcesFailed {
		fmt.Printf("   ⚠️  %s: %s\n", f.Source, f.Error)
	}
	if resp.DuplicatesRemoved > 0 {
		fmt.Printf("   🔁 %d cross-source duplicates removed\n", resp.DuplicatesRemoved)
	}
	if resp.DuplicateStats != nil && resp.DuplicateStats.Duplicates > 0 {
		fmt.Printf("   🗄  %d already stored\n", resp.DuplicateStats.Duplicates)
	}
	if resp.Message != "" {
		fmt.Printf("   ℹ️  %s\n", resp.Message)
	}
	fmt.Println()

	for i, art := range resp.Articles {
		fmt.Printf("%2d. [%s] %s\n", i+1, art.Provider, art.Title)
		if art.Analysis != nil {
			fmt.Printf("    uplift %.2f | %s | %s %v\n",
				art.Analysis.OverallHopefulness, art.Analysis.Sentiment,
				art.Analysis.ImpactLevel, art.Analysis.LocationNames)
		}
		fmt.Printf("    %s\n", art.URL)
	}

	if s := resp.GeminiStats; s != nil {
		fmt.Printf("\n📊 Scoring: %s | %d articles | %d batches | %d tokens | stored %d | rows %d\n",
			s.Status, s.ProcessedArticles, s.TotalBatches, s.TotalTokens, s.Stored, s.SheetRows)
		if s.BlockingReason != "" {
			fmt.Printf("   ⏸  stopped early: %s\n", s.BlockingReason)
		}
	}
	return nil
}

func sourcesCmd(cfgPath *string) *cobra.Command {
	var test bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Show provider configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			agg := a.pipeline.Aggregator()
			if test {
				return printJSON(agg.TestAll(cmd.Context()))
			}
			return printJSON(agg.SourceInfo())
		},
	}

	cmd.Flags().BoolVar(&test, "test", false, "test the connection to every configured provider")
	return cmd
}

func statsCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored article statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("database stats: %w", err)
			}
			out := map[string]any{"database": stats}
			if an := a.pipeline.Analyzer(); an != nil {
				out["scoring_limits"] = an.Limiter().Limits()
				out["prompt_versions"] = an.Prompts()
			}
			return printJSON(out)
		},
	}
}

func operatorCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage API operators",
	}

	var email, password, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an operator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("HOPESHOT_OPERATOR_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or HOPESHOT_OPERATOR_PASSWORD) are required")
			}

			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			op, err := a.users.Create(cmd.Context(), email, password, role)
			if errors.Is(err, user.ErrExists) {
				return fmt.Errorf("operator %s already exists", email)
			}
			if err != nil {
				return err
			}
			fmt.Printf("✅ Operator %s created (id %d, role %s)\n", op.Email, op.ID, op.Role)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "operator email")
	add.Flags().StringVar(&password, "password", "", "operator password")
	add.Flags().StringVar(&role, "role", user.RoleOperator, "operator or admin")

	cmd.AddCommand(add)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hopeshot %s (api %s)\n", version, api.Version)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
