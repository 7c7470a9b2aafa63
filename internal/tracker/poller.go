package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/wfunc/initiative-tracker/internal/initiative"
	"go.uber.org/zap"
)

// DefaultPollInterval matches the refresh period of the browser client.
const DefaultPollInterval = 3 * time.Second

// StatusFetcher loads a status snapshot for one campaign.
type StatusFetcher interface {
	FetchStatus(ctx context.Context, campaignID uint) (*initiative.Status, error)
}

// Renderer draws a snapshot. Every call replaces what was drawn before.
type Renderer interface {
	Render(campaignID uint, status *initiative.Status)
}

// Options poll timings
type Options struct {
	Interval       time.Duration
	RequestTimeout time.Duration
}

// Poller re-fetches the selected campaign's status on a fixed interval and
// hands each snapshot to the renderer. Nothing is fetched while no campaign
// is selected.
type Poller struct {
	fetcher  StatusFetcher
	renderer Renderer
	opts     Options
	logger   *zap.Logger

	mu       sync.Mutex
	selected uint
	refresh  chan struct{}
}

func NewPoller(fetcher StatusFetcher, renderer Renderer, opts Options, log *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		fetcher:  fetcher,
		renderer: renderer,
		opts:     opts,
		logger:   log,
		refresh:  make(chan struct{}, 1),
	}
}

// Select starts polling campaignID and asks for an immediate fetch.
func (p *Poller) Select(campaignID uint) {
	p.mu.Lock()
	p.selected = campaignID
	p.mu.Unlock()
	p.Refresh()
}

// Deselect stops polling until the next Select.
func (p *Poller) Deselect() {
	p.mu.Lock()
	p.selected = 0
	p.mu.Unlock()
}

// Selected returns the polled campaign, 0 when none.
func (p *Poller) Selected() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Refresh asks Run for a fetch ahead of the next tick. Requests made while
// one is pending are merged.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("poller stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		case <-p.refresh:
			p.Poll(ctx)
		}
	}
}

// Poll fetches and renders once. A failed fetch is logged and left for the
// next tick. A result for a campaign that was deselected or replaced while
// the request was in flight is dropped.
func (p *Poller) Poll(ctx context.Context) {
	campaignID := p.Selected()
	if campaignID == 0 {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.RequestTimeout)
	defer cancel()

	status, err := p.fetcher.FetchStatus(fetchCtx, campaignID)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("status fetch failed",
				zap.Uint("campaign_id", campaignID),
				zap.Error(err))
		}
		return
	}
	if p.Selected() != campaignID {
		return
	}
	p.renderer.Render(campaignID, status)
}
