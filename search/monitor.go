package search

import (
	"github.com/poiesic/termbridge/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(dimension int)
	AfterIndexQuery(hits []core.IndexHit)
	ResolvedHit(hit core.IndexHit, concept *core.Concept)
	MetadataHit(hit core.IndexHit)
	UnresolvedHit(hit core.IndexHit)
	Finish(results []core.SearchHit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                               {}
func (n *noopMonitor) AfterEmbedding(_ int)                         {}
func (n *noopMonitor) AfterIndexQuery(_ []core.IndexHit)            {}
func (n *noopMonitor) ResolvedHit(_ core.IndexHit, _ *core.Concept) {}
func (n *noopMonitor) MetadataHit(_ core.IndexHit)                  {}
func (n *noopMonitor) UnresolvedHit(_ core.IndexHit)                {}
func (n *noopMonitor) Finish(_ []core.SearchHit)                    {}
