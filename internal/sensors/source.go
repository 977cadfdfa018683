package sensors

import (
	"context"

	"github.com/mxl983/mango-rover/internal/models"
)

// Reading mutates one snapshot field with a collected value. Readings are
// applied by the aggregation goroutine only, never by the collecting
// goroutine, so snapshot construction stays single-writer.
type Reading func(snap *models.StatsSnapshot)

// Source defines the interface for collecting a specific hardware reading.
// A Source that cannot produce a value returns an error; the aggregator
// leaves the corresponding snapshot field at its sentinel.
type Source interface {
	Name() string                                // Name of the reading (e.g., "cpu_temp")
	Collect(ctx context.Context) (Reading, error) // Collect the reading
}

// Registry manages all sensor sources and provides a way to add them
// dynamically.
type Registry struct {
	sources []Source
}

// NewRegistry creates a new sensor source Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a new source to the registry. Registration order is the
// order sources are collected in.
func (r *Registry) Register(source Source) {
	r.sources = append(r.sources, source)
}

// Sources returns all registered sources.
func (r *Registry) Sources() []Source {
	return r.sources
}
