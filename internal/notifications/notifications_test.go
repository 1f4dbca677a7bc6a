package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/umar/livesync/internal/models"
	"github.com/umar/livesync/internal/notice"
)

// stubFetcher serves pages from memory. totals[i] is the totalPages value
// reported by page i+1.
type stubFetcher struct {
	mu       sync.Mutex
	pages    map[int][]models.Notification
	totals   map[int]int
	failOn   map[int]error
	requests []int
	marked   int
	markErr  error
}

func (s *stubFetcher) FetchPage(_ context.Context, page int) (models.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, page)
	if err := s.failOn[page]; err != nil {
		return models.Page{}, err
	}
	items := append([]models.Notification(nil), s.pages[page]...)
	return models.Page{Items: items, Page: page, TotalPages: s.totals[page]}, nil
}

func (s *stubFetcher) MarkAllRead(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.marked++
	for p, items := range s.pages {
		for i := range items {
			items[i].IsRead = true
		}
		s.pages[p] = items
	}
	return nil
}

func notes(prefix string, unread, read int) []models.Notification {
	var out []models.Notification
	for i := 0; i < unread; i++ {
		out = append(out, models.Notification{ID: fmt.Sprintf("%s-u%d", prefix, i), Message: "new"})
	}
	for i := 0; i < read; i++ {
		out = append(out, models.Notification{ID: fmt.Sprintf("%s-r%d", prefix, i), Message: "old", IsRead: true})
	}
	return out
}

func TestFetchAllTwoPages(t *testing.T) {
	f := &stubFetcher{
		pages:  map[int][]models.Notification{1: notes("p1", 2, 1), 2: notes("p2", 1, 2)},
		totals: map[int]int{1: 2, 2: 2},
	}
	all, err := FetchAll(context.Background(), f, 0, nil)
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(f.requests) != 2 || f.requests[0] != 1 || f.requests[1] != 2 {
		t.Fatalf("expected pages 1 and 2, fetched %v", f.requests)
	}
	if len(all) != 6 {
		t.Fatalf("expected 6 accumulated items, got %d", len(all))
	}
	if models.Unread(all) != 3 {
		t.Fatalf("expected 3 unread, got %d", models.Unread(all))
	}
}

func TestFetchAllRereadsTotalPages(t *testing.T) {
	f := &stubFetcher{
		pages:  map[int][]models.Notification{1: notes("p1", 1, 0), 2: notes("p2", 1, 0), 3: notes("p3", 1, 0)},
		totals: map[int]int{1: 1, 2: 3, 3: 3},
	}
	// page 1 claims a single page, so the loop stops there
	all, err := FetchAll(context.Background(), f, 0, nil)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected 1 item, got %d (err %v)", len(all), err)
	}

	f = &stubFetcher{
		pages:  map[int][]models.Notification{1: notes("p1", 1, 0), 2: notes("p2", 1, 0), 3: notes("p3", 1, 0)},
		totals: map[int]int{1: 2, 2: 3, 3: 3},
	}
	all, err = FetchAll(context.Background(), f, 0, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected the loop to follow the grown page count, got %d (err %v)", len(all), err)
	}
}

func TestFetchAllKeepsPartialResultOnError(t *testing.T) {
	boom := errors.New("boom")
	f := &stubFetcher{
		pages:  map[int][]models.Notification{1: notes("p1", 2, 0)},
		totals: map[int]int{1: 3},
		failOn: map[int]error{2: boom},
	}
	all, err := FetchAll(context.Background(), f, 0, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected the first page to survive, got %d items", len(all))
	}
	if len(f.requests) != 2 {
		t.Fatalf("loop must not continue after an error, fetched %v", f.requests)
	}
}

func TestFetchAllPageCap(t *testing.T) {
	f := &stubFetcher{
		pages:  map[int][]models.Notification{1: notes("p1", 1, 0), 2: notes("p2", 1, 0)},
		totals: map[int]int{1: 1000, 2: 1000},
	}
	all, err := FetchAll(context.Background(), f, 2, nil)
	if err == nil {
		t.Fatalf("expected cap error")
	}
	if len(all) != 2 || len(f.requests) != 2 {
		t.Fatalf("expected two pages before the cap, got %d items / %v", len(all), f.requests)
	}
}

func newThreePagePane(rec *notice.Recorder) (*Pane, *stubFetcher) {
	f := &stubFetcher{
		pages: map[int][]models.Notification{
			1: notes("p1", 2, 0),
			2: notes("p2", 1, 1),
			3: notes("p3", 0, 1),
		},
		totals: map[int]int{1: 3, 2: 3, 3: 3},
	}
	return NewPane(PaneOptions{Fetcher: f, Notifier: rec}), f
}

func TestPaneNavigationClamps(t *testing.T) {
	ctx := context.Background()
	p, f := newThreePagePane(&notice.Recorder{})

	if v := p.View(); v.Placeholder != PlaceholderLoading {
		t.Fatalf("expected loading placeholder before open, got %q", v.Placeholder)
	}
	if err := p.Open(ctx); err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	v := p.View()
	if v.Page != 1 || v.CanPrevious || !v.CanNext {
		t.Fatalf("unexpected first page view: %+v", v)
	}

	if err := p.Previous(ctx); err != nil {
		t.Fatalf("Previous returned error: %v", err)
	}
	if len(f.requests) != 1 {
		t.Fatalf("previous on page 1 must not fetch, got %v", f.requests)
	}

	p.Next(ctx)
	v = p.View()
	if v.Page != 2 || len(v.Items) != 2 || v.Items[0].ID != "p2-u0" {
		t.Fatalf("expected only page 2 items, got %+v", v)
	}

	p.Next(ctx)
	v = p.View()
	if v.Page != 3 || v.CanNext || !v.CanPrevious {
		t.Fatalf("unexpected last page view: %+v", v)
	}
	requests := len(f.requests)
	p.Next(ctx)
	if len(f.requests) != requests {
		t.Fatalf("next on the last page must not fetch")
	}

	p.Previous(ctx)
	if v := p.View(); v.Page != 2 || len(v.Items) != 2 {
		t.Fatalf("previous should show page 2 only, got %+v", v)
	}
}

func TestPaneMarkAllReadRefetchesCurrentPage(t *testing.T) {
	ctx := context.Background()
	p, f := newThreePagePane(&notice.Recorder{})
	p.Open(ctx)
	p.Next(ctx)
	if p.View().Unread != 1 {
		t.Fatalf("expected one unread item on page 2")
	}

	if err := p.MarkAllRead(ctx); err != nil {
		t.Fatalf("MarkAllRead returned error: %v", err)
	}
	if f.marked != 1 {
		t.Fatalf("expected one mark-all call, got %d", f.marked)
	}
	last := f.requests[len(f.requests)-1]
	if last != 2 {
		t.Fatalf("expected refetch of page 2, got page %d", last)
	}
	if v := p.View(); v.Unread != 0 || v.Page != 2 {
		t.Fatalf("expected page 2 with nothing unread, got %+v", v)
	}
}

func TestPaneEmptyAndErrors(t *testing.T) {
	ctx := context.Background()
	rec := &notice.Recorder{}
	f := &stubFetcher{
		pages:  map[int][]models.Notification{},
		totals: map[int]int{1: 0},
	}
	p := NewPane(PaneOptions{Fetcher: f, Notifier: rec})
	p.Open(ctx)
	v := p.View()
	if v.Placeholder != PlaceholderEmpty || v.CanNext || v.CanPrevious {
		t.Fatalf("unexpected empty view: %+v", v)
	}

	f.failOn = map[int]error{1: &APIError{Status: http.StatusForbidden, Message: "Not allowed"}}
	if err := p.Refresh(ctx); err == nil {
		t.Fatalf("expected refresh error")
	}
	f.failOn = map[int]error{1: errors.New("connection reset")}
	p.Refresh(ctx)

	got := rec.Notices()
	if len(got) != 2 || got[0].Text != "Not allowed" || got[1].Text != GenericErrorText {
		t.Fatalf("unexpected notices: %+v", got)
	}

	f.markErr = &APIError{Status: http.StatusInternalServerError}
	if err := p.MarkAllRead(ctx); err == nil {
		t.Fatalf("expected mark-all error")
	}
	if rec.Count(GenericErrorText) != 2 {
		t.Fatalf("expected generic notice for bare api error, got %+v", rec.Notices())
	}
}

func TestPaneCloseDiscardsLateResponses(t *testing.T) {
	p, _ := newThreePagePane(&notice.Recorder{})
	p.Close()
	if err := p.Open(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if len(p.View().Items) != 0 {
		t.Fatalf("closed pane must not show items")
	}
}

func TestClientFetchPageAndMarkAllRead(t *testing.T) {
	var gotAuth, gotPage string
	var marked bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/notifications":
			gotPage = r.URL.Query().Get("page")
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"notifications":[{"id":"n1","message":"Order shipped","isRead":false,"createdAt":"2024-05-01T10:00:00Z"}],"pagination":{"totalPages":4}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/notifications/all":
			marked = true
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL + "/", Credential: "tok", RPS: 100})
	page, err := c.FetchPage(context.Background(), 3)
	if err != nil {
		t.Fatalf("FetchPage returned error: %v", err)
	}
	if gotPage != "3" || gotAuth != "Bearer tok" {
		t.Fatalf("unexpected request: page=%q auth=%q", gotPage, gotAuth)
	}
	if page.TotalPages != 4 || page.Page != 3 || len(page.Items) != 1 || page.Items[0].Message != "Order shipped" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].CreatedAt.IsZero() {
		t.Fatalf("createdAt not decoded")
	}

	if err := c.MarkAllRead(context.Background()); err != nil || !marked {
		t.Fatalf("MarkAllRead: err=%v marked=%v", err, marked)
	}
}

func TestClientSurfacesServerErrorText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Session expired"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL})
	_, err := c.FetchPage(context.Background(), 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected APIError 401, got %v", err)
	}
	if UserMessage(err) != "Session expired" {
		t.Fatalf("unexpected user message %q", UserMessage(err))
	}

	_, err = c.FetchPage(context.Background(), 2)
	if UserMessage(err) != GenericErrorText {
		t.Fatalf("expected generic fallback, got %q", UserMessage(err))
	}
}

func TestClientToleratesUnparseableCreatedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"notifications":[` +
			`{"id":"n1","message":"odd clock","isRead":false,"createdAt":"01/05/2024 10am"},` +
			`{"id":"n2","message":"fine","isRead":false,"createdAt":"2024-05-01T10:00:00Z"}` +
			`],"pagination":{"totalPages":1,"currentPage":1}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, RPS: 100})
	all, err := FetchAll(context.Background(), c, 0, nil)
	if err != nil {
		t.Fatalf("FetchAll returned error: %v", err)
	}
	if len(all) != 2 || models.Unread(all) != 2 {
		t.Fatalf("expected 2 unread items, got %+v", all)
	}
	if !all[0].CreatedAt.IsZero() || all[1].CreatedAt.IsZero() {
		t.Fatalf("unexpected timestamps: %v, %v", all[0].CreatedAt, all[1].CreatedAt)
	}
}
