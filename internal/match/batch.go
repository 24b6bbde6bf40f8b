package match

import (
	"context"
	"iter"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
	"golang.org/x/sync/errgroup"
)

// BatchOptions controls chunking. StartChunk skips chunks already processed
// by an earlier run.
type BatchOptions struct {
	ChunkSize  int
	StartChunk int
}

// Stats are per-chunk quality counters. Rejection counters are per source:
// an unmatched source counts once under each flag its candidates carried.
type Stats struct {
	Processed          int `json:"processed"`
	InBounds           int `json:"in_bounds"`
	Matched            int `json:"matched"`
	Unmatched          int `json:"unmatched"`
	Disagreements      int `json:"disagreements"`
	RejectedDistance   int `json:"rejected_distance"`
	RejectedGeography  int `json:"rejected_geography"`
	RejectedConfidence int `json:"rejected_confidence"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Processed += o.Processed
	s.InBounds += o.InBounds
	s.Matched += o.Matched
	s.Unmatched += o.Unmatched
	s.Disagreements += o.Disagreements
	s.RejectedDistance += o.RejectedDistance
	s.RejectedGeography += o.RejectedGeography
	s.RejectedConfidence += o.RejectedConfidence
}

// Batch is one matched chunk. Start is the offset of Linked[0] in the input
// and Total the input length.
type Batch struct {
	Index  int
	Start  int
	Total  int
	Linked []domain.Linked
	Stats  Stats
}

// Batches matches sources chunk by chunk. Chunks are produced lazily in
// input order; each is matched by up to Workers goroutines. Iteration stops
// at the first error, including context cancellation between chunks.
func (e *Engine) Batches(ctx context.Context, sources []domain.SourceEntity, opts BatchOptions) iter.Seq2[Batch, error] {
	size := opts.ChunkSize
	if size <= 0 {
		size = e.cfg.ChunkSize
	}
	chunks := len(sources) / size
	if len(sources)%size != 0 {
		chunks++
	}
	first := min(max(opts.StartChunk, 0), chunks)

	return func(yield func(Batch, error) bool) {
		for idx := first; idx < chunks; idx++ {
			if err := ctx.Err(); err != nil {
				yield(Batch{}, err)
				return
			}

			start := idx * size
			end := min(start+size, len(sources))
			b, err := e.linkChunk(ctx, sources[start:end])
			if err != nil {
				yield(Batch{}, err)
				return
			}
			b.Index, b.Start, b.Total = idx, start, len(sources)
			if !yield(b, nil) {
				return
			}
		}
	}
}

func (e *Engine) linkChunk(ctx context.Context, chunk []domain.SourceEntity) (Batch, error) {
	started := e.clock.Now()
	out := make([]domain.Linked, len(chunk))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, src := range chunk {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l, err := e.Link(src)
			if err != nil {
				return err
			}
			out[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Batch{}, err
	}

	b := Batch{Linked: out}
	for _, l := range out {
		b.Stats.Add(e.stats(l))
	}
	e.metrics.ChunkDuration.Observe(e.clock.Since(started).Seconds())
	e.logger.Debug("chunk linked", "sources", len(chunk), "matched", b.Stats.Matched)
	return b, nil
}

func (e *Engine) stats(l domain.Linked) Stats {
	s := Stats{Processed: 1}
	if e.cfg.Bounds.Contains(l.Source.Location) {
		s.InBounds = 1
	}
	if l.Best() != nil {
		s.Matched = 1
		return s
	}
	s.Unmatched = 1
	if l.Reconciliation != nil && l.Reconciliation.Decision == domain.DecisionDisagreement {
		s.Disagreements = 1
	}

	seen := map[domain.QualityFlag]bool{}
	for _, r := range l.Rejections {
		for _, f := range r.Flags {
			seen[f] = true
		}
	}
	if seen[domain.FlagDistanceExceeded] {
		s.RejectedDistance = 1
	}
	if seen[domain.FlagOutOfBounds] {
		s.RejectedGeography = 1
	}
	if seen[domain.FlagLowConfidence] {
		s.RejectedConfidence = 1
	}
	return s
}

// LinkAll matches every source and returns the results in input order.
func (e *Engine) LinkAll(ctx context.Context, sources []domain.SourceEntity) ([]domain.Linked, Stats, error) {
	out := make([]domain.Linked, 0, len(sources))
	var total Stats
	for b, err := range e.Batches(ctx, sources, BatchOptions{}) {
		if err != nil {
			return nil, Stats{}, err
		}
		out = append(out, b.Linked...)
		total.Add(b.Stats)
	}
	return out, total, nil
}
