package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dealmungchi/marketcrawler/config"
	"github.com/dealmungchi/marketcrawler/internal/browser"
	"github.com/dealmungchi/marketcrawler/internal/dedup"
	"github.com/dealmungchi/marketcrawler/internal/extract"
	"github.com/dealmungchi/marketcrawler/internal/normalize"
	"github.com/dealmungchi/marketcrawler/internal/pipeline"
	"github.com/dealmungchi/marketcrawler/internal/record"
	"github.com/dealmungchi/marketcrawler/internal/sink"
	"github.com/dealmungchi/marketcrawler/logger"
	"github.com/dealmungchi/marketcrawler/services/publisher"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 2
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("region", cfg.Region).
		Str("output", cfg.OutputPath).
		Msg("starting crawler")

	// Set up context cancelled by shutdown signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	driver, err := newDriver(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to open fetch session")
		return 2
	}
	defer driver.Close()

	schema := record.DefaultSchema()

	extractor := extract.New(extract.Selectors{
		Row:  cfg.RowSelector,
		Next: cfg.NextSelector,
	})

	store, err := newDedupStore(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to create dedup store")
		return 2
	}

	out := sink.NewCSVSink(cfg.OutputPath, schema, cfg.FlushEvery, cfg.FlushInterval)
	defer out.Close()

	var pub publisher.Publisher
	if cfg.PublishEnabled {
		redisPub := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		defer redisPub.Close()
		pub = redisPub
		log.Info().Str("addr", cfg.RedisAddr).Str("stream", cfg.RedisStream).Msg("publishing records to redis")
	}

	p := pipeline.New(
		pipeline.Options{
			StartURL:       cfg.StartURL,
			Region:         cfg.Region,
			MaxPages:       cfg.MaxPages,
			MaxRecords:     cfg.MaxRecords,
			MaxRetries:     cfg.MaxRetries,
			Concurrency:    cfg.Concurrency,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
			OnPageFailure:  cfg.OnPageFailure,
			IdentityFields: cfg.IdentityFields,
			RateLimitRPS:   cfg.RateLimitRPS,
		},
		driver,
		extractor,
		normalize.New(schema),
		store,
		out,
		pub,
		logger.ForComponent("pipeline"),
	)

	result := p.Run(ctx)

	if err := out.Close(); err != nil {
		log.Error().Err(err).Msg("closing output failed")
		return 2
	}

	log.Info().
		Int64("records", result.Summary.RecordsEmitted).
		Str("output", cfg.OutputPath).
		Int("exit_code", result.ExitCode()).
		Msg("done")

	return result.ExitCode()
}

// newDriver builds the fetch engine the config asks for
func newDriver(cfg config.Config) (browser.Driver, error) {
	if cfg.FetchEngine == "http" {
		return browser.NewHTTPDriver(cfg.NavTimeout), nil
	}

	wait, err := browser.ParseWaitCondition(cfg.WaitCondition)
	if err != nil {
		return nil, err
	}

	return browser.NewRodDriver(browser.Options{
		Headless:       cfg.BrowserHeadless,
		NoSandbox:      cfg.BrowserNoSandbox,
		Bin:            cfg.BrowserBin,
		Stealth:        cfg.Stealth,
		DismissDialogs: cfg.DismissDialogs,
		NavTimeout:     cfg.NavTimeout,
		Wait:           wait,
	})
}

// newDedupStore builds the configured dedup backend
func newDedupStore(cfg config.Config) (dedup.Store, error) {
	switch cfg.DedupBackend {
	case "memcache":
		return dedup.NewMemcacheStore(cfg.MemcacheAddr, "crawl:", cfg.DedupTTL), nil
	default:
		return dedup.NewMemoryStore(), nil
	}
}
