package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamecal/internal/cache"
	"gamecal/internal/classify"
	"gamecal/internal/config"
	"gamecal/internal/feed"
	"gamecal/internal/filter"
	"gamecal/internal/gcal"
	"gamecal/internal/ics"
	"gamecal/internal/log"
	"gamecal/internal/model"
	"gamecal/internal/notify"
	"gamecal/internal/report"
	"gamecal/internal/schedule"
	"gamecal/internal/source"
	"gamecal/internal/store"
	"gamecal/internal/web"
)

var version = "0.1.0-dev"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	migrate    bool
}

func main() {
	flags := parseFlags()

	if err := run(flags); err != nil {
		fmt.Fprintln(os.Stderr, "gamecal:", err)
		os.Exit(1)
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/gamecal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Refresh the record list once and exit")
	flag.BoolVar(&cfg.migrate, "migrate", false, "Apply database migrations and exit")

	flag.Parse()

	return cfg
}

func run(flags flagConfig) error {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.configPath, err)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	logger := log.New(os.Stderr, log.ParseLevel(conf.LogLevel))
	logger.Info("gamecal starting", "version", version)
	logger.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"feed", conf.Feed.Kind,
		"source", conf.Source.Kind,
		"cache", conf.Cache.Kind,
		"once", flags.once,
	)

	reporter, err := report.New(logger, report.Options{
		SentryDSN:   conf.SentryDSN,
		Environment: conf.Env,
		Release:     version,
	})
	if err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	defer reporter.Flush(2 * time.Second)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	medium, closeMedium, err := openMedium(conf)
	if err != nil {
		return err
	}
	defer closeMedium()

	ttl, err := conf.CacheTTL()
	if err != nil {
		return err
	}

	fetcher, categories, closeSource, err := openSource(ctx, conf, logger, flags.migrate)
	if err != nil {
		return err
	}
	defer closeSource()
	if flags.migrate {
		logger.Info("migrations applied")
		return nil
	}

	table := conf.ClassifierTable()
	if len(categories) > 0 {
		table = classify.FromCategories(categories)
	}
	classifier := classify.New(table)

	hub := notify.NewHub()
	rec := source.New(source.Options{
		Fetcher: fetcher,
		Cache: cache.New[model.Record](medium, cache.Options{
			TTL: ttl,
			Log: logger,
		}),
		Fallback: conf.FallbackRecords(),
		Notifier: hub,
		Reporter: reporter,
		Log:      logger.With("component", "source"),
	})

	if flags.once {
		recs := rec.Get(ctx, true)
		st := rec.Status()
		logger.Info("records refreshed", "count", len(recs), "origin", st.Origin)
		return nil
	}

	// Initial load; the cache is honoured.
	go rec.Get(ctx, false)

	events, err := openFeed(ctx, conf, medium, rec, logger)
	if err != nil {
		return err
	}

	selection := filter.NewSelection(nil, hub)
	selection.SetUniverse(classifier.Tags())

	sched, err := schedule.New(ctx, conf.RefreshCron, schedule.RefreshFunc(func(ctx context.Context) int {
		return len(rec.Get(ctx, true))
	}), logger.With("component", "schedule"))
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	srv := web.NewServer(web.Options{
		Config:    conf,
		Records:   rec,
		Feed:      events,
		Engine:    filter.NewEngine(classifier),
		Selection: selection,
		Hub:       hub,
		Reporter:  reporter,
		Log:       logger.With("component", "web"),
		Sentry:    reporter.Enabled(),
	})

	err = srv.ListenAndServe(ctx)
	logger.Info("gamecal exiting")
	return err
}

// openMedium opens the cache medium named by cache.kind. The same medium
// also holds ICS bodies and validators under their own keys.
func openMedium(conf *config.Config) (store.Medium, func(), error) {
	switch conf.Cache.Kind {
	case config.CacheMemory:
		return store.NewMemory(), func() {}, nil
	case config.CacheSQLite:
		db, err := store.OpenSQLite(conf.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return db, func() { _ = db.Close() }, nil
	default:
		f, err := store.NewFile(conf.Cache.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open file cache: %w", err)
		}
		return f, func() {}, nil
	}
}

// openSource builds the record fetcher. For the database source it also
// returns the categories stored next to the events.
func openSource(ctx context.Context, conf *config.Config, logger *log.Logger, migrate bool) (source.Fetcher, []model.Category, func(), error) {
	noop := func() {}

	switch conf.Source.Kind {
	case config.SourceDatabase:
		db, err := source.OpenDatabase(ctx, conf.Source.DatabaseDSN, logger.With("component", "database"))
		if errors.Is(err, source.ErrNotConfigured) {
			if migrate {
				return nil, nil, noop, errors.New("migrate: database_dsn is empty")
			}
			return source.Unconfigured{}, nil, noop, nil
		}
		if err != nil {
			return nil, nil, noop, err
		}
		if migrate {
			if err := db.ApplyMigrations(); err != nil {
				db.Close()
				return nil, nil, noop, err
			}
			return db, nil, db.Close, nil
		}

		cats, err := db.Categories(ctx)
		if err != nil {
			// Keyword table from the config still works without them.
			logger.Error("load categories failed", err)
		}
		return db, cats, db.Close, nil

	case config.SourceNone:
		if migrate {
			return nil, nil, noop, errors.New("migrate: source kind is not database")
		}
		return source.Unconfigured{}, nil, noop, nil

	default:
		if migrate {
			return nil, nil, noop, errors.New("migrate: source kind is not database")
		}
		if conf.Source.WebhookURL == "" {
			return source.Unconfigured{}, nil, noop, nil
		}
		return source.NewWebhook(conf.Source.WebhookURL, logger.With("component", "webhook")), nil, noop, nil
	}
}

func openFeed(ctx context.Context, conf *config.Config, medium store.Medium, rec *source.Reconciler, logger *log.Logger) (feed.Feed, error) {
	loc := conf.Location()

	switch conf.Feed.Kind {
	case config.FeedICS:
		sources := make([]ics.Source, 0, len(conf.Feed.ICS))
		for _, c := range conf.Feed.ICS {
			if c.URL == "" {
				continue
			}
			id := c.ID
			if id == "" {
				id = c.Name
			}
			if id == "" {
				id = c.URL
			}
			sources = append(sources, ics.Source{ID: id, Name: c.Name, URL: c.URL})
		}
		l := logger.With("component", "ics")
		return ics.NewFeed(ics.NewFetcher(medium, l), sources, loc, l), nil

	case config.FeedRecords:
		return feed.Records{Source: rec}, nil

	default:
		return gcal.New(ctx, gcal.Config{
			APIKey:     conf.Feed.Google.APIKey,
			CalendarID: conf.Feed.Google.CalendarID,
			Endpoint:   conf.Feed.Google.Endpoint,
		}, loc, logger.With("component", "gcal"))
	}
}
