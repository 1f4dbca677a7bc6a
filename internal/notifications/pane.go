package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/notice"
)

const (
	PlaceholderLoading = "Loading notifications..."
	PlaceholderEmpty   = "No notifications"
)

var ErrClosed = errors.New("notification pane closed")

// Marker performs the "mark all as read" action. The unread synchronizer
// implements it so the badge resets together with the REST call.
type Marker interface {
	MarkAllRead(ctx context.Context) error
}

type PaneOptions struct {
	Fetcher  Fetcher
	Marker   Marker
	Notifier notice.Notifier
	Logger   *slog.Logger
}

// PaneView is what the notification pane renders.
type PaneView struct {
	Items       []models.Notification
	Page        int
	TotalPages  int
	CanPrevious bool
	CanNext     bool
	Loading     bool
	Placeholder string
	Unread      int
}

// Pane is the interactive, one-page-at-a-time notification browser. Every
// fetch replaces the displayed items.
type Pane struct {
	opts PaneOptions

	mu         sync.Mutex
	page       int
	totalPages int
	items      []models.Notification
	loading    bool
	loaded     bool
	closed     bool
	gen        uint64
}

func NewPane(opts PaneOptions) *Pane {
	if opts.Marker == nil {
		opts.Marker = opts.Fetcher
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pane{opts: opts}
}

// Open loads the first page.
func (p *Pane) Open(ctx context.Context) error {
	return p.load(ctx, 1)
}

// Next loads the following page. It does nothing on the last page.
func (p *Pane) Next(ctx context.Context) error {
	p.mu.Lock()
	if !p.canNext() {
		p.mu.Unlock()
		return nil
	}
	target := p.page + 1
	p.mu.Unlock()
	return p.load(ctx, target)
}

// Previous loads the preceding page. It does nothing on page 1.
func (p *Pane) Previous(ctx context.Context) error {
	p.mu.Lock()
	if !p.canPrevious() {
		p.mu.Unlock()
		return nil
	}
	target := p.page - 1
	p.mu.Unlock()
	return p.load(ctx, target)
}

// Refresh re-fetches the current page.
func (p *Pane) Refresh(ctx context.Context) error {
	p.mu.Lock()
	target := p.page
	p.mu.Unlock()
	if target < 1 {
		target = 1
	}
	return p.load(ctx, target)
}

// MarkAllRead runs the mark-all action, then re-fetches the current page so
// the items show their read state.
func (p *Pane) MarkAllRead(ctx context.Context) error {
	if p.isClosed() {
		return ErrClosed
	}
	if err := p.opts.Marker.MarkAllRead(ctx); err != nil {
		p.opts.Logger.Error("mark all read failed", "error", err)
		p.notify(UserMessage(err))
		return err
	}
	return p.Refresh(ctx)
}

// Close detaches the pane. Responses that arrive afterwards are discarded.
func (p *Pane) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *Pane) View() PaneView {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := PaneView{
		Items:       append([]models.Notification(nil), p.items...),
		Page:        p.page,
		TotalPages:  p.totalPages,
		CanPrevious: p.canPrevious(),
		CanNext:     p.canNext(),
		Loading:     p.loading,
		Unread:      models.Unread(p.items),
	}
	if len(p.items) == 0 {
		if p.loading || !p.loaded {
			v.Placeholder = PlaceholderLoading
		} else {
			v.Placeholder = PlaceholderEmpty
		}
	}
	return v
}

func (p *Pane) load(ctx context.Context, page int) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.gen++
	gen := p.gen
	p.loading = true
	p.mu.Unlock()

	res, err := p.opts.Fetcher.FetchPage(ctx, page)

	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		p.opts.Logger.Debug("stale notification page discarded", "page", page)
		return nil
	}
	p.loading = false
	if err != nil {
		p.mu.Unlock()
		p.opts.Logger.Error("notification page fetch failed", "page", page, "error", err)
		p.notify(UserMessage(err))
		return err
	}
	p.items = res.Items
	p.page = page
	p.totalPages = res.TotalPages
	p.loaded = true
	p.mu.Unlock()
	return nil
}

func (p *Pane) canPrevious() bool { return p.page > 1 }

func (p *Pane) canNext() bool { return p.page >= 1 && p.page < p.totalPages }

func (p *Pane) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pane) notify(text string) {
	if p.opts.Notifier != nil {
		p.opts.Notifier.Notify(notice.Notice{Level: notice.LevelError, Text: text})
	}
}
