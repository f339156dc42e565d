package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/termbridge"
	"github.com/poiesic/termbridge/config"
	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/feed"
	"github.com/urfave/cli/v2"
)

func openEngine(ctx context.Context, c *cli.Context, opts ...termbridge.Option) (*termbridge.Engine, error) {
	cfg := configFrom(c)
	opts = append([]termbridge.Option{
		termbridge.WithConfig(cfg),
		termbridge.WithLogger(slog.Default()),
	}, opts...)
	e, err := termbridge.Open(ctx, cfg.DataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.DataDir, err)
	}
	return e, nil
}

// feedProviders assembles the providers selected by flags, falling back to
// the configuration for flags left unset.
func feedProviders(c *cli.Context, cfg *config.Config) ([]feed.Provider, error) {
	seed := cfg.Feeds.Seed
	if c.IsSet("seed") {
		seed = c.Bool("seed")
	}
	dir := cfg.Feeds.Dir
	if c.IsSet("feed-dir") {
		dir = c.String("feed-dir")
	}
	snow := cfg.Feeds.Snowstorm.Enabled
	if c.IsSet("snowstorm") {
		snow = c.Bool("snowstorm")
	}

	var providers []feed.Provider
	if seed {
		providers = append(providers, feed.Seed()...)
	}
	if dir != "" {
		files, err := feed.OpenDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read feed directory: %w", err)
		}
		providers = append(providers, files...)
	}
	if snow {
		s, err := snowstormProvider(cfg)
		if err != nil {
			return nil, err
		}
		providers = append(providers, s)
	}
	return providers, nil
}

func snowstormProvider(cfg *config.Config) (*feed.Snowstorm, error) {
	sc := cfg.Feeds.Snowstorm
	return feed.NewSnowstorm(sc.URL, sc.IDs,
		feed.WithBranch(sc.Branch),
		feed.WithPacing(sc.Pacing),
		feed.WithSnowstormLogger(slog.Default()))
}

func refreshCommand(c *cli.Context) error {
	ctx := c.Context
	cfg := configFrom(c)
	providers, err := feedProviders(c, cfg)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		return errors.New("no feeds selected: pass --seed, --feed-dir or --snowstorm")
	}

	e, err := openEngine(ctx, c, termbridge.WithProgress(os.Stderr))
	if err != nil {
		return err
	}
	defer e.Close()

	report, err := e.Refresh(ctx, providers...)
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Build: %s\n", report.BuildID)
	for _, l := range report.Loads {
		fmt.Fprintf(w, "  %-18s loaded %d, rejected %d, duplicates %d\n", l.System, l.Loaded, l.Rejected, l.Duplicates)
	}
	fmt.Fprintf(w, "Embedded %d concepts in %s\n", report.Embedded, report.Duration.Round(time.Millisecond))
	return nil
}

func parseSystems(names []string) ([]core.System, error) {
	out := make([]core.System, 0, len(names))
	for _, name := range names {
		sys, err := core.ParseSystem(name)
		if err != nil {
			return nil, err
		}
		out = append(out, sys)
	}
	return out, nil
}

func printMappings(w io.Writer, results []*core.MappingResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "  no mappings")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "  %s [%0.3f %s] %s\n", r.Target.ID(), r.Confidence, r.Type, r.Target.Display)
		fmt.Fprintf(w, "    %s\n", r.Explanation)
	}
}

func mapCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one CODE is required")
	}
	systems, err := parseSystems(append([]string{c.String("source")}, c.StringSlice("target")...))
	if err != nil {
		return err
	}

	e, err := openEngine(c.Context, c)
	if err != nil {
		return err
	}
	defer e.Close()

	code := c.Args().First()
	results, err := e.Mapping().FindMappings(c.Context, code, systems[0], systems[1:]...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s:%s\n", systems[0], code)
	printMappings(c.App.Writer, results)
	return nil
}

func batchMapCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one CODE is required")
	}
	systems, err := parseSystems([]string{c.String("source"), c.String("target")})
	if err != nil {
		return err
	}

	e, err := openEngine(c.Context, c)
	if err != nil {
		return err
	}
	defer e.Close()

	codes := c.Args().Slice()
	results, err := e.Mapping().BatchMap(c.Context, codes, systems[0], systems[1])
	if err != nil {
		return err
	}
	for _, code := range codes {
		fmt.Fprintf(c.App.Writer, "%s:%s\n", systems[0], code)
		printMappings(c.App.Writer, results[code])
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("QUERY is required")
	}

	e, err := openEngine(c.Context, c)
	if err != nil {
		return err
	}
	defer e.Close()

	hits, err := e.Search(c.Context, query, c.Int("top-k"))
	if errors.Is(err, core.ErrEmptyIndex) {
		return errors.New("index is empty: run refresh first")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(hits))
	for i, hit := range hits {
		fmt.Fprintf(c.App.Writer, "%d: %s:%s '%s' [%0.3f]\n", i, hit.System, hit.Code, hit.Display, hit.Distance)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	e, err := openEngine(c.Context, c)
	if err != nil {
		return err
	}
	defer e.Close()

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(e.Mapping().Statistics())
}

func feedbackCommand(c *cli.Context) error {
	fb := core.Feedback{
		MappingID:            c.String("mapping-id"),
		SourceCode:           c.String("source-code"),
		TargetCode:           c.String("target-code"),
		Type:                 core.FeedbackType(strings.ToUpper(c.String("type"))),
		ConfidenceAdjustment: c.Float64("adjustment"),
		Comments:             c.String("comments"),
		UserID:               c.String("user"),
	}
	if err := core.ValidateFeedback(&fb); err != nil {
		return err
	}

	e, err := openEngine(c.Context, c)
	if err != nil {
		return err
	}
	defer e.Close()

	recorded, err := e.Mapping().AddFeedback(c.Context, fb)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Recorded feedback %s\n", recorded.ID)
	return nil
}

func watchCommand(c *cli.Context) error {
	cfg := configFrom(c)
	dir := cfg.Feeds.Dir
	if c.IsSet("feed-dir") {
		dir = c.String("feed-dir")
	}
	if dir == "" {
		return errors.New("--feed-dir is required")
	}
	var extra []feed.Provider
	if c.Bool("seed") {
		extra = feed.Seed()
	}
	debounce := cfg.Watch.Debounce
	if c.IsSet("debounce") {
		debounce = c.Duration("debounce")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEngine(ctx, c, termbridge.WithDebounce(debounce))
	if err != nil {
		return err
	}
	defer e.Close()

	providers, err := feed.OpenDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read feed directory: %w", err)
	}
	if providers = append(providers, extra...); len(providers) > 0 {
		if _, err := e.Refresh(ctx, providers...); err != nil {
			slog.Error("initial refresh failed", "err", err)
		}
	}

	w, err := e.Watch(ctx, dir, extra...)
	if err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}
