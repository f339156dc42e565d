package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/termbridge/core"
	"golang.org/x/sync/errgroup"
)

// Provider fetches the raw concepts of one terminology system.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// System is the terminology system the records belong to.
	System() core.System

	// Fetch returns the records. Implementations honor ctx cancellation.
	Fetch(ctx context.Context) ([]core.RawConcept, error)
}

// Batch is the output of one provider.
type Batch struct {
	Provider string
	System   core.System
	Records  []core.RawConcept
}

// FetchAll runs every provider concurrently and returns their batches in
// provider order. The first failure cancels the remaining fetches and is
// returned wrapped with ErrProviderFailed and the provider name.
func FetchAll(ctx context.Context, providers []Provider) ([]Batch, error) {
	batches := make([]Batch, len(providers))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			records, err := p.Fetch(ctx)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.Name(), err)
			}
			batches[i] = Batch{Provider: p.Name(), System: p.System(), Records: records}
			slog.Debug("fetched feed", "provider", p.Name(), "system", p.System(), "records", len(records))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// Static serves a fixed set of records.
type Static struct {
	name    string
	system  core.System
	records []core.RawConcept
}

var _ Provider = (*Static)(nil)

// NewStatic creates a provider over records.
func NewStatic(name string, system core.System, records []core.RawConcept) *Static {
	return &Static{name: name, system: system, records: records}
}

// Name implements Provider.
func (s *Static) Name() string { return s.name }

// System implements Provider.
func (s *Static) System() core.System { return s.system }

// Fetch implements Provider. The returned slice is a copy.
func (s *Static) Fetch(ctx context.Context) ([]core.RawConcept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]core.RawConcept(nil), s.records...), nil
}
