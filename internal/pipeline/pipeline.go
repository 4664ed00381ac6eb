// Package pipeline drives the poll cycle for baraholka-watch: fetch the
// configured listing pages, filter by keywords, resolve Telegram chat
// links, drop already-notified listings, notify, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	"github.com/baraholka-watch/baraholka-watch/internal/notify"
	"github.com/baraholka-watch/baraholka-watch/internal/scrape"
	"github.com/baraholka-watch/baraholka-watch/internal/store"
	"github.com/baraholka-watch/baraholka-watch/internal/util"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("a polling run is already in progress")

// Defaults for orchestrator configuration.
const (
	// DefaultRetention is how long dedup records are kept before pruning.
	DefaultRetention = 7 * 24 * time.Hour
	// DefaultResolveWorkers is the number of concurrent chat link resolutions.
	DefaultResolveWorkers = 4
)

// Opts holds configuration options for the orchestrator.
type Opts struct {
	URLs           []string
	Retention      time.Duration
	ResolveWorkers int
	DryRun         bool
}

// Option defines a functional option for orchestrator configuration.
type Option func(*Opts)

// WithListingURLs sets the listing pages polled each run.
func WithListingURLs(urls ...string) Option {
	return func(o *Opts) { o.URLs = urls }
}

// WithRetention overrides how long dedup records are kept.
func WithRetention(d time.Duration) Option {
	return func(o *Opts) { o.Retention = d }
}

// WithResolveWorkers overrides the chat link resolution concurrency.
func WithResolveWorkers(n int) Option {
	return func(o *Opts) { o.ResolveWorkers = n }
}

// WithDryRun replaces sends with log lines and skips all state writes.
func WithDryRun(dryRun bool) Option {
	return func(o *Opts) { o.DryRun = dryRun }
}

// Orchestrator runs one poll cycle at a time.
type Orchestrator struct {
	source   scrape.ListingSource
	filter   *scrape.KeywordFilter
	resolver scrape.LinkResolver
	store    store.Store
	sink     notify.Service

	urls           []string
	retention      time.Duration
	resolveWorkers int
	dryRun         bool

	mu      sync.Mutex
	running bool
}

// NewOrchestrator wires the pipeline components together.
func NewOrchestrator(source scrape.ListingSource, filter *scrape.KeywordFilter, resolver scrape.LinkResolver, st store.Store, sink notify.Service, opts ...Option) (*Orchestrator, error) {
	cfg := Opts{
		Retention:      DefaultRetention,
		ResolveWorkers: DefaultResolveWorkers,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if source == nil || filter == nil || resolver == nil || st == nil || sink == nil {
		return nil, fmt.Errorf("all pipeline components must be provided")
	}
	if len(cfg.URLs) == 0 {
		return nil, models.ErrNoListingURLs
	}
	if cfg.ResolveWorkers < 1 {
		cfg.ResolveWorkers = 1
	}
	slog.Debug("Orchestrator configured",
		"urls", len(cfg.URLs),
		"retention", cfg.Retention,
		"resolve_workers", cfg.ResolveWorkers,
		"dry_run", cfg.DryRun)

	return &Orchestrator{
		source:         source,
		filter:         filter,
		resolver:       resolver,
		store:          st,
		sink:           sink,
		urls:           cfg.URLs,
		retention:      cfg.Retention,
		resolveWorkers: cfg.ResolveWorkers,
		dryRun:         cfg.DryRun,
	}, nil
}

// Run executes one poll cycle. Only one run may be active at a time;
// concurrent calls return ErrRunInProgress. A fetch failure aborts the
// run; everything later fails soft per item.
func (o *Orchestrator) Run(ctx context.Context) (report models.RunReport, err error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return models.RunReport{}, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	report.RunID = util.GenerateRunID()
	report.DryRun = o.dryRun
	report.StartedAt = time.Now()
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	slog.Info("poll cycle started", "run_id", report.RunID, "urls", len(o.urls), "dry_run", o.dryRun)

	report.State = models.RunStateFetching
	var fetched []models.ListingItem
	for _, u := range o.urls {
		items, err := o.source.FetchListings(ctx, u)
		if err != nil {
			report.State = models.RunStateErrored
			slog.Error("listing fetch failed", "run_id", report.RunID, "url", u, "error", err)
			return report, fmt.Errorf("failed to fetch listings from %s: %w", u, err)
		}
		fetched = append(fetched, items...)
	}
	report.Fetched = len(fetched)

	report.State = models.RunStateFiltering
	matched := o.filter.Filter(fetched)
	report.Matched = len(matched)
	slog.Debug("keyword filter applied", "run_id", report.RunID, "fetched", report.Fetched, "matched", report.Matched)

	report.State = models.RunStateResolving
	o.resolveChatLinks(ctx, matched)
	for _, item := range matched {
		if item.ChatLink != "" {
			report.Resolved++
		}
	}

	report.State = models.RunStateDeduping
	fresh := make([]models.ListingItem, 0, len(matched))
	for _, item := range matched {
		if item.ChatLink == "" {
			// Resolution failed; the listing is retried next run.
			continue
		}
		seen, err := o.store.Contains(item.ID)
		if err != nil {
			slog.Warn("dedup check failed, treating listing as new", "id", item.ID, "error", err)
		}
		if seen {
			report.Duplicates++
			continue
		}
		fresh = append(fresh, item)
	}

	report.State = models.RunStateNotifying
	var staged []models.DedupRecord
	var cancelErr error
	for _, item := range fresh {
		if ctx.Err() != nil {
			cancelErr = fmt.Errorf("run cancelled: %w", ctx.Err())
			break
		}
		if o.dryRun {
			slog.Info("dry-run: would notify", "id", item.ID, "title", item.Title, "price", item.Price)
			report.Sent++
			continue
		}
		if err := o.sink.SendListing(ctx, item); err != nil {
			// No dedup record is staged, so the listing is retried next run.
			slog.Error("notification failed", "id", item.ID, "error", err)
			report.SendFailures++
			continue
		}
		report.Sent++
		staged = append(staged, models.DedupRecord{ID: item.ID, NotifiedAt: time.Now()})
	}

	// A cancelled run that sent nothing must leave the store untouched;
	// anything already sent is persisted even on cancellation so it is not
	// re-notified next run.
	if !o.dryRun && (cancelErr == nil || len(staged) > 0) {
		report.State = models.RunStatePersisting
		report.Pruned = o.persist(staged)
	}
	if cancelErr != nil {
		slog.Warn("poll cycle cancelled", "run_id", report.RunID, "state", string(report.State))
		return report, cancelErr
	}

	report.State = models.RunStateDone
	slog.Info("poll cycle finished",
		"run_id", report.RunID,
		"fetched", report.Fetched,
		"matched", report.Matched,
		"resolved", report.Resolved,
		"duplicates", report.Duplicates,
		"sent", report.Sent,
		"send_failures", report.SendFailures,
		"pruned", report.Pruned,
		"dry_run", report.DryRun,
		"duration", time.Since(report.StartedAt))
	return report, nil
}

// resolveChatLinks fills in ChatLink for each item using a bounded worker
// pool. Results are written by input index, so item order is stable for
// the later phases. Failures leave ChatLink empty.
func (o *Orchestrator) resolveChatLinks(ctx context.Context, items []models.ListingItem) {
	if len(items) == 0 {
		return
	}
	workers := o.resolveWorkers
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				link, err := o.resolver.ResolveChatLink(ctx, items[i])
				if err != nil {
					slog.Warn("chat link resolution failed", "id", items[i].ID, "url", items[i].DetailURL, "error", err)
					continue
				}
				items[i].ChatLink = link
			}
		}()
	}

feed:
	for i := range items {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
}

// persist is the single write point of a run: record what was sent, prune
// expired records, save. Errors here do not fail the run, but a failed
// save means notified listings may repeat next run, so they are logged
// loudly.
func (o *Orchestrator) persist(staged []models.DedupRecord) int {
	for _, rec := range staged {
		if err := o.store.Record(rec); err != nil {
			slog.Error("failed to record notified listing", "id", rec.ID, "error", err)
		}
	}
	pruned, err := o.store.Prune(time.Now().Add(-o.retention))
	if err != nil {
		slog.Error("failed to prune dedup records", "error", err)
	}
	if err := o.store.Save(); err != nil {
		slog.Error("failed to save dedup state, notified listings may repeat next run", "error", err)
	}
	return pruned
}
