// Command extract runs one extraction and prints the snapshot as JSON. With
// -html it evaluates the rule table against a saved page instead of a live
// browser, which is how selectors are checked after a markup change.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/maltedev/pricehawk/internal/browser"
	"github.com/maltedev/pricehawk/internal/config"
	"github.com/maltedev/pricehawk/internal/extract"
	"github.com/maltedev/pricehawk/internal/logger"
	"github.com/maltedev/pricehawk/internal/models"
	"github.com/maltedev/pricehawk/internal/rules"
	"github.com/maltedev/pricehawk/internal/scraper"
)

func main() {
	var (
		url       = flag.String("url", "", "product URL")
		mock      = flag.Bool("mock", false, "generate a synthetic snapshot instead of scraping")
		htmlFile  = flag.String("html", "", "saved HTML page to extract from instead of a live browser")
		platform  = flag.String("platform", "", "platform of the -html page when -url is not given")
		rulesFile = flag.String("rules", "", "rule table file (default: embedded rules)")
		headless  = flag.Bool("headless", true, "run the browser headless")
		timeout   = flag.Duration("timeout", 90*time.Second, "overall timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, "text")

	if *rulesFile == "" {
		*rulesFile = cfg.Scraper.RulesFile
	}
	table, err := rules.Load(*rulesFile)
	if err != nil {
		log.Error("failed to load rules", "error", err)
		os.Exit(1)
	}

	target := *url
	if target == "" && *htmlFile != "" {
		target, err = placeholderURL(table, *platform)
		if err != nil {
			log.Error("cannot determine platform", "error", err)
			os.Exit(2)
		}
	}
	if target == "" {
		fmt.Fprintln(os.Stderr, "Please provide a URL with -url, or -html with -platform")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *timeout)
	defer cancelTimeout()

	var (
		fetcher scraper.Fetcher
		mode    = scraper.ModeLive
	)
	switch {
	case *mock:
		fetcher = scraper.NewRandomMockFetcher()
		mode = scraper.ModeMock
	case *htmlFile != "":
		fetcher = scraper.NewLiveFetcher(fileSessions{path: *htmlFile}, log)
	default:
		opts := browser.DefaultOptions()
		opts.Headless = *headless
		opts.MaxSessions = 1
		manager, err := browser.New(opts, log)
		if err != nil {
			log.Error("failed to initialize browser", "error", err)
			os.Exit(1)
		}
		defer manager.Close()
		fetcher = scraper.NewLiveFetcher(manager, log)
	}

	snap, err := scraper.NewService(table, fetcher, mode, log).Extract(ctx, target)
	if err != nil {
		log.Error("extraction failed", "url", target, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		log.Error("failed to encode snapshot", "error", err)
		os.Exit(1)
	}
}

// placeholderURL builds a URL the platform resolver maps to name.
func placeholderURL(table *rules.Table, name string) (string, error) {
	p := models.ParsePlatform(name)
	rule, ok := table.Lookup(p)
	if !ok || len(rule.URLMarkers) == 0 {
		return "", fmt.Errorf("unknown platform %q", name)
	}
	return "https://" + strings.TrimSuffix(rule.URLMarkers[0], ".") + ".local/product", nil
}

// fileSessions serves a saved page through goquery.
type fileSessions struct {
	path string
}

func (f fileSessions) WithSession(ctx context.Context, url string, _ time.Duration, fn func(extract.Page) error) error {
	file, err := os.Open(f.path)
	if err != nil {
		return &browser.NavigationError{URL: url, Err: err}
	}
	defer file.Close()

	page, err := extract.NewDocumentPage(file, url)
	if err != nil {
		return &browser.NavigationError{URL: url, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(page)
}
