package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	_ "github.com/lib/pq"

	"github.com/dgduncan/wheretogo"
	dynamocache "github.com/dgduncan/wheretogo/caches/dynamodb"
	"github.com/dgduncan/wheretogo/caches/local"
	"github.com/dgduncan/wheretogo/caches/postgres"
	"github.com/dgduncan/wheretogo/export"
	"github.com/dgduncan/wheretogo/filters"
	"github.com/dgduncan/wheretogo/server"
	"github.com/dgduncan/wheretogo/ticketmaster"
)

type busyFlag []filters.Appointment

func (b *busyFlag) String() string {
	return fmt.Sprint(len(*b), " appointments")
}

func (b *busyFlag) Set(v string) error {
	start, end, ok := strings.Cut(v, "/")
	if !ok || start == "" || end == "" {
		return fmt.Errorf("expected <start>/<end>, got %q", v)
	}
	*b = append(*b, filters.Appointment{Start: start, End: end})
	return nil
}

type flags struct {
	configPath string
	start      string
	end        string
	busy       busyFlag
	city       string
	format     string
	serve      bool
	listen     string
	verbose    bool
}

func parseFlags() *flags {
	f := &flags{}

	flag.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&f.start, "start", "", "start of the search range (default now)")
	flag.StringVar(&f.end, "end", "", "end of the search range (default start + 7 days)")
	flag.Var(&f.busy, "busy", "busy interval as <start>/<end>, repeatable")
	flag.StringVar(&f.city, "city", "", "city to search events in")
	flag.StringVar(&f.format, "format", "text", "output format: text, json or ics")
	flag.BoolVar(&f.serve, "serve", false, "serve GET /events over HTTP instead of querying once")
	flag.StringVar(&f.listen, "listen", "", "HTTP listen address, overrides the config file")
	flag.BoolVar(&f.verbose, "v", false, "debug logging")
	flag.Parse()

	return f
}

func main() {
	f := parseFlags()

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, f, logger); err != nil {
		logger.Error("wheretogo failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, f *flags, logger *slog.Logger) error {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if err := loadEnv(cfg); err != nil {
		return err
	}
	if f.listen != "" {
		cfg.Listen = f.listen
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	client, err := ticketmaster.New(cfg.APIKey, &ticketmaster.Config{BaseURL: cfg.BaseURL}, logger)
	if err != nil {
		return err
	}

	cache, closeCache, err := newCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	fetcher := wheretogo.New(client, cache, &wheretogo.Config{Query: cfg.Query}, logger)

	if f.serve {
		return serve(ctx, cfg.Listen, fetcher, logger)
	}

	return query(ctx, f, fetcher, os.Stdout)
}

// newCache builds the configured backend. The returned func releases it.
func newCache(ctx context.Context, c cacheConfig, logger *slog.Logger) (wheretogo.Cache, func(), error) {
	noop := func() {}

	switch c.Backend {
	case backendNone:
		return nil, noop, nil

	case backendPostgres:
		db, err := sql.Open("postgres", c.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}

		cache, err := postgres.New(ctx, db, &postgres.Config{
			TTL:                c.TTL,
			DeleteExpiredItems: true,
		}, logger)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return cache, func() { db.Close() }, nil

	case backendDynamoDB:
		opts := []func(*awsconfig.LoadOptions) error{}
		if c.Region != "" {
			opts = append(opts, awsconfig.WithRegion(c.Region))
		}

		awscfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, noop, fmt.Errorf("loading aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awscfg)

		table := c.DynamoDBTable
		if table == "" {
			table = dynamocache.DefaultTable
		}

		if c.CreateTable {
			if err := dynamocache.EnsureTable(ctx, client, table); err != nil {
				return nil, noop, fmt.Errorf("creating table %s: %w", table, err)
			}
		}

		cache, err := dynamocache.New(ctx, client, &dynamocache.Config{
			TTL:                c.TTL,
			DeleteExpiredItems: true,
			Table:              table,
		})
		if err != nil {
			return nil, noop, err
		}
		return cache, noop, nil

	default:
		// a zero ttl keeps entries for the life of the process
		var lc *local.Config
		if c.TTL > 0 {
			lc = &local.Config{TTL: c.TTL}
		}
		return local.NewEventCache(lc), noop, nil
	}
}

func serve(ctx context.Context, addr string, fetcher *wheretogo.Fetcher, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(fetcher, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func query(ctx context.Context, f *flags, fetcher *wheretogo.Fetcher, w io.Writer) error {
	var start, end any = time.Now(), nil
	if f.start != "" {
		start = f.start
	}

	if f.end != "" {
		end = f.end
	} else {
		s, err := wheretogo.ParseTime(start)
		if err != nil {
			return err
		}
		end = s.Add(7 * 24 * time.Hour)
	}

	overlap, err := filters.NewOverlapFilter(f.busy...)
	if err != nil {
		return err
	}

	q := wheretogo.Query{}
	if f.city != "" {
		q["city"] = []string{f.city}
	}

	events, err := fetcher.GetEvents(ctx, start, end, q, overlap)
	if err != nil {
		return err
	}

	return write(w, f.format, events)
}

func write(w io.Writer, format string, events []wheretogo.Event) error {
	switch format {
	case "json":
		if events == nil {
			events = []wheretogo.Event{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)

	case "ics":
		return export.WriteICal(w, events)

	case "text":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, e := range events {
			when := "unknown"
			if t, err := e.StartTime(); err == nil {
				when = t.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", when, e.Name, e.URL)
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
