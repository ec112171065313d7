package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
	"github.com/wozniakbe/nutriscan/internal/scan"
)

// errNoProduct is returned when a command ran cleanly but resolved nothing.
// It maps to exit status 2.
var errNoProduct = zerr.New("no product found")

// CLI is the nutriscan command tree.
type CLI struct {
	cfg     Config
	logger  *slog.Logger
	newApp  appFactory
	rootCmd *cobra.Command
}

// NewCLI creates the command tree. factory is called once per command that
// needs the cache or the food database.
func NewCLI(cfg Config, logger *slog.Logger, factory appFactory) *CLI {
	rootCmd := &cobra.Command{
		Use:           "nutriscan",
		Short:         "Scan product barcodes and check their nutrition facts",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetVersionTemplate("{{.Name}} version {{.Version}}\n")

	c := &CLI{cfg: cfg, logger: logger, newApp: factory, rootCmd: rootCmd}

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newScanCmd())
	rootCmd.AddCommand(c.newLookupCmd())
	rootCmd.AddCommand(c.newStatsCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}

func (c *CLI) app(ctx context.Context) (*App, error) {
	a, err := c.newApp(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("initialising: %w", err)
	}
	return a, nil
}

func (c *CLI) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.cfg.validateServer(); err != nil {
				return err
			}
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return c.serve(cmd.Context(), a)
		},
	}
}

func (c *CLI) serve(ctx context.Context, a *App) error {
	handler := NewHandler(a, c.cfg.MaxUploadBytes, c.logger)
	srv := &http.Server{
		Addr:         ":" + c.cfg.ServerPort,
		Handler:      NewRouter(handler, c.cfg, c.logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("server starting", "port", c.cfg.ServerPort, "cache", c.cfg.CacheBackend)
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
	c.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	c.logger.Info("server stopped")
	return nil
}

// thresholdFlags maps each nutrient to its scan override flag.
var thresholdFlags = map[nutrition.Nutrient]string{
	nutrition.Calories: "max-calories",
	nutrition.Protein:  "min-protein",
	nutrition.Fat:      "max-fat",
	nutrition.Carbs:    "max-carbs",
	nutrition.Sugar:    "max-sugar",
	nutrition.Fiber:    "min-fiber",
}

func (c *CLI) newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan IMAGE",
		Short: "Decode a barcode image and evaluate the product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			//nolint:gosec // path is supplied by the user on the command line
			img, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading image: %w", err)
			}

			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			th, err := c.scanThresholds(cmd, a)
			if err != nil {
				return err
			}

			rep, err := a.Pipeline.Scan(cmd.Context(), img, th)
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), rep)
			}
			if !rep.Found() {
				return errNoProduct
			}
			return nil
		},
	}
	cmd.Flags().String("prefs", "", "YAML file with threshold overrides")
	cmd.Flags().String("user", "", "Use the stored thresholds of this user")
	cmd.Flags().Bool("json", false, "Print the report as JSON")
	for _, n := range nutrition.Nutrients {
		cmd.Flags().Float64(thresholdFlags[n], 0, n.Label()+" threshold")
	}
	return cmd
}

// scanThresholds layers the threshold sources: stored user thresholds (or
// history defaults), then the --prefs profile, then individual flags.
func (c *CLI) scanThresholds(cmd *cobra.Command, a *App) (nutrition.Thresholds, error) {
	user, _ := cmd.Flags().GetString("user")
	th, _, err := a.ThresholdsFor(cmd.Context(), user)
	if err != nil {
		return nutrition.Thresholds{}, err
	}

	if path, _ := cmd.Flags().GetString("prefs"); path != "" {
		th, err = loadProfile(path, th)
		if err != nil {
			return nutrition.Thresholds{}, err
		}
	}

	for _, n := range nutrition.Nutrients {
		name := thresholdFlags[n]
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, _ := cmd.Flags().GetFloat64(name)
		th = th.With(n, v)
	}

	if err := th.Validate(); err != nil {
		return nutrition.Thresholds{}, err
	}
	return th, nil
}

func (c *CLI) newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup BARCODE",
		Short: "Look up the nutrition facts of a barcode payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Resolver.ResolveCode(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			if !res.Found() {
				_, _ = fmt.Fprintf(out, "No product found for %s\n", args[0])
				return errNoProduct
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(out, ProductResponse{Barcode: args[0], Source: res.Source, Record: res.Record})
			}
			_, _ = fmt.Fprintf(out, "Source: %s\n", res.Source)
			printRecord(out, *res.Record)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the record as JSON")
	return cmd
}

func (c *CLI) newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the cached scan history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.app(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			records := a.Cache.Records()
			resp := StatsResponse{
				Entries:   len(records),
				Nutrients: nutrition.Summarize(records),
				Defaults:  nutrition.DefaultsFrom(records),
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printStats(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print the summary as JSON")
	return cmd
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "nutriscan version %s\n", version)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReport(w io.Writer, rep scan.Report) {
	if len(rep.Barcodes) == 0 {
		_, _ = fmt.Fprintln(w, "No barcode detected")
		return
	}
	for _, bc := range rep.Barcodes {
		_, _ = fmt.Fprintf(w, "Barcode: %s (%s)\n", bc.Payload, bc.Symbology)
	}
	if len(rep.Unsupported) > 0 {
		_, _ = fmt.Fprintf(w, "Unsupported: %s\n", strings.Join(rep.Unsupported, ", "))
	}
	if !rep.Found() {
		_, _ = fmt.Fprintln(w, "Nutrition data not found")
		return
	}

	_, _ = fmt.Fprintf(w, "Source: %s\n", rep.Source)
	printRecord(w, *rep.Record)

	if rep.Evaluation.Passed {
		_, _ = fmt.Fprintln(w, "Result: matches your preferences")
		return
	}
	_, _ = fmt.Fprintln(w, "Result: does not match your preferences")
	for _, m := range rep.Evaluation.Mismatches {
		_, _ = fmt.Fprintf(w, "  - %s\n", m)
	}
}

func printRecord(w io.Writer, rec nutrition.Record) {
	_, _ = fmt.Fprintf(w, "Product: %s\n", rec.Name)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, n := range nutrition.Nutrients {
		_, _ = fmt.Fprintf(tw, "  %s\t%g\n", n.Label(), rec.Value(n))
	}
	_ = tw.Flush()
}

func printStats(w io.Writer, resp StatsResponse) {
	_, _ = fmt.Fprintf(w, "Entries: %d\n", resp.Entries)
	if resp.Entries == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Nutrient\tMean\tMin\tMax\tDefault")
	for _, s := range resp.Nutrients {
		_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%g\t%g\t%g\n",
			s.Nutrient.Label(), s.Mean, s.Min, s.Max, resp.Defaults.Get(s.Nutrient))
	}
	_ = tw.Flush()
}
