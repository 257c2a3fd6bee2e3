package usage

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/diagramlab/diagrambot/internal/config"
)

// PollInterval is how often the chat pipeline refreshes absolute totals.
const PollInterval = 5 * time.Second

// Snapshot is the display-facing view of session usage. Readers always see
// a consistent pre- or post-update pair, never a partial sum.
type Snapshot struct {
	Cost   float64
	Tokens int64
}

// Tracker is the common read surface over both tracking strategies.
type Tracker interface {
	Snapshot() Snapshot
}

// Accumulator is the event-driven strategy used by the voice pipeline: each
// response's usage report is priced and added to the running total. The
// cumulative cost never decreases within a session.
type Accumulator struct {
	table config.PriceTable

	mu       sync.Mutex
	cost     float64
	tokens   int64
	byCat    map[config.Category]int64
	onChange func(Snapshot)
}

// NewAccumulator returns an accumulator priced against the given table.
func NewAccumulator(table config.PriceTable) *Accumulator {
	return &Accumulator{
		table: table,
		byCat: make(map[config.Category]int64, len(config.Categories)),
	}
}

// OnChange registers a callback invoked after each recorded report.
func (a *Accumulator) OnChange(fn func(Snapshot)) {
	a.mu.Lock()
	a.onChange = fn
	a.mu.Unlock()
}

// Record prices a usage report and folds it into the running totals,
// returning the increment. Empty reports are a no-op, not an error.
func (a *Accumulator) Record(r Report) float64 {
	if r.Empty() {
		return 0
	}

	increment := r.Cost(a.table)

	a.mu.Lock()
	a.cost += increment
	for c, n := range r.Counts() {
		a.byCat[c] += n
		a.tokens += n
	}
	snap := Snapshot{Cost: a.cost, Tokens: a.tokens}
	fn := a.onChange
	a.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return increment
}

// Snapshot returns the current totals.
func (a *Accumulator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{Cost: a.cost, Tokens: a.tokens}
}

// CategoryCounts returns a copy of the per-category token counters.
func (a *Accumulator) CategoryCounts() map[config.Category]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[config.Category]int64, len(a.byCat))
	for c, n := range a.byCat {
		out[c] = n
	}
	return out
}

// CostReporter is the slice of the chat client the poller needs: absolute
// cumulative cost and token totals on demand.
type CostReporter interface {
	CumulativeCost() float64
	TotalTokens() int64
}

// Poller is the poll-and-replace strategy used by the chat pipeline: on a
// fixed interval it reads absolute totals from the model client and
// overwrites the display state. It never accumulates.
type Poller struct {
	client CostReporter

	mu       sync.Mutex
	snap     Snapshot
	onChange func(Snapshot)
}

// NewPoller returns a poller reading from the given client.
func NewPoller(client CostReporter) *Poller {
	return &Poller{client: client}
}

// OnChange registers a callback invoked after each poll.
func (p *Poller) OnChange(fn func(Snapshot)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Poll reads the client's absolute totals and replaces the snapshot.
func (p *Poller) Poll() {
	snap := Snapshot{
		Cost:   p.client.CumulativeCost(),
		Tokens: p.client.TotalTokens(),
	}

	p.mu.Lock()
	p.snap = snap
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// Snapshot returns the most recently polled totals.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Run polls on the fixed interval until the context is canceled. Tracking
// failures never interrupt the user-facing flow; there is nothing to do on
// error here beyond keeping the previous snapshot.
func (p *Poller) Run(ctx context.Context, debug bool) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll()
			if debug {
				snap := p.Snapshot()
				log.Printf("usage poll: cost=$%.4f tokens=%d", snap.Cost, snap.Tokens)
			}
		}
	}
}
