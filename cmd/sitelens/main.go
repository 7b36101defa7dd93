package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"sitelens/internal/analyze"
	"sitelens/internal/capture"
	"sitelens/internal/config"
	"sitelens/internal/discover"
	"sitelens/internal/figma"
	"sitelens/internal/job"
	"sitelens/internal/report"
	"sitelens/internal/stabilize"
)

func main() {
	// os.Exit skips deferred cleanup, so the browser-owning logic
	// lives in run and the exit code travels back here.
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to yaml config file")
	inputPath := flag.String("input", "", "newline-delimited list of seed URLs (# lines are comments)")
	singleURL := flag.String("url", "", "capture a single URL instead of reading -input")
	doCapture := flag.Bool("capture", false, "run the capture stage")
	doAnalyze := flag.Bool("analyze", false, "run the vision-analysis stage")
	doDiscover := flag.Bool("discover", false, "expand each seed via same-origin link discovery (also switched on by discovery.enabled in the config)")
	maxLinks := flag.Int("max-links", 0, "override the discovery link cap")
	outputDir := flag.String("output", "", "override the screenshot output directory")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if !*doCapture && !*doAnalyze {
		fmt.Fprintln(os.Stderr, "usage: sitelens -capture [-analyze] [-discover] (-url URL | -input FILE)")
		flag.PrintDefaults()
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		return 1
	}
	if *outputDir != "" {
		cfg.Capture.OutputDir = *outputDir
	}
	if *maxLinks > 0 {
		cfg.Discovery.MaxLinks = *maxLinks
	}
	discoverOn := *doDiscover || cfg.Discovery.Enabled

	seeds, err := readSeeds(*inputPath, *singleURL)
	if err != nil {
		logger.Error("read seeds", "err", err)
		return 1
	}
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "no seed URLs supplied; use -url or -input")
		return 2
	}

	// Credentials for requested collaborators are checked once, up
	// front, before any browser starts.
	var analyzer analyze.Client
	if *doAnalyze {
		client, provider, err := analyze.NewClientFromConfig(cfg.Analysis)
		if err != nil {
			logger.Error("analysis requested but unusable", "provider", provider, "err", err)
			return 1
		}
		analyzer = client
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := capture.NewSession(ctx, cfg.Browser.ControlURL)
	if err != nil {
		logger.Error("start browser", "err", err)
		return 1
	}
	defer session.Close()

	stabilizer := stabilize.New(cfg.Stabilizer, logger)
	figmaClient := figma.NewClient(cfg.Figma.Token, cfg.Figma.BaseURL)
	unit := capture.NewUnit(session, stabilizer, figmaClient, cfg, logger)

	var disc job.Discoverer
	if discoverOn {
		disc = &discoveryAdapter{
			d: discover.New(cfg.Discovery.Timeout(), logger),
			opts: discover.Options{
				Timeout:       cfg.Discovery.Timeout(),
				RespectRobots: cfg.Discovery.RespectRobots,
				UserAgent:     cfg.Discovery.UserAgent,
			},
		}
	}

	runner := job.NewRunner(cfg, unit, disc, analyzer, job.Options{
		Discover: discoverOn,
		Analyze:  *doAnalyze,
	}, logEvents{logger}, logger)

	rep, runErr := runner.Run(ctx, seeds)

	jsonPath, csvPath, repErr := report.Write(rep, cfg.Capture.OutputDir)
	if repErr != nil {
		logger.Error("writing report", "err", repErr)
	}

	logger.Info("run finished",
		"attempted", rep.Attempted,
		"succeeded", rep.Succeeded,
		"failed", rep.Failed,
		"invalid", rep.Invalid,
		"json", jsonPath,
		"csv", csvPath,
	)

	if runErr != nil {
		logger.Error("job aborted", "err", runErr)
		return 1
	}
	return 0
}

// readSeeds loads the seed URL list: either the single -url value or
// the newline-delimited -input file with # comments and blanks skipped.
func readSeeds(inputPath, singleURL string) ([]string, error) {
	if singleURL != "" {
		return []string{singleURL}, nil
	}
	if inputPath == "" {
		return nil, nil
	}

	f, err := os.Open(inputPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var seeds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	return seeds, scanner.Err()
}

// discoveryAdapter narrows the discover package's API to the runner's
// Discoverer interface.
type discoveryAdapter struct {
	d    *discover.Discoverer
	opts discover.Options
}

func (a *discoveryAdapter) Discover(ctx context.Context, seedURL string, maxLinks int) ([]string, error) {
	opts := a.opts
	opts.MaxLinks = maxLinks
	return a.d.Discover(ctx, seedURL, opts)
}

// logEvents mirrors run progress to the logger. It is the default
// observer sink; alternative sinks can be swapped in by embedders.
type logEvents struct {
	log *slog.Logger
}

func (e logEvents) TargetStarted(seed string) {
	e.log.Info("target started", "seed", seed)
}

func (e logEvents) TargetFinished(seed string, captures int, failure string) {
	if failure != "" {
		e.log.Warn("target finished", "seed", seed, "captures", captures, "failure", failure)
		return
	}
	e.log.Info("target finished", "seed", seed, "captures", captures)
}

func (e logEvents) StageDone(stage string) {
	e.log.Debug("stage done", "stage", stage)
}
