package backend

import (
	"context"
	"errors"

	"github.com/apex/log"
)

// Built-in choices used when the backend cannot list its own.
var (
	DefaultCrops    = []string{"Mango"}
	DefaultAdvisors = []string{"Dr. Plant Pathologist", "Dr. Crop Expert", "Agricultural Specialist"}
)

// Catalog lists selectable crops and advisors, falling back to the built-in
// lists on a missing endpoint or any failure.
type Catalog struct {
	svc Service
}

func NewCatalog(svc Service) *Catalog {
	return &Catalog{svc: svc}
}

func (c *Catalog) Crops(ctx context.Context) []string {
	return c.withFallback(ctx, "crops", c.svc.Crops, DefaultCrops)
}

func (c *Catalog) Advisors(ctx context.Context) []string {
	return c.withFallback(ctx, "advisors", c.svc.Advisors, DefaultAdvisors)
}

func (c *Catalog) withFallback(ctx context.Context, what string, fetch func(context.Context) ([]string, error), fallback []string) []string {
	names, err := fetch(ctx)
	if err == nil && len(names) > 0 {
		return names
	}

	entry := log.WithField("list", what)
	switch {
	case errors.Is(err, ErrUnsupported):
		entry.Debug("backend has no listing endpoint, using built-in list")
	case err != nil:
		entry.WithError(err).Warn("listing failed, using built-in list")
	default:
		entry.Warn("backend returned an empty list, using built-in list")
	}

	out := make([]string, len(fallback))
	copy(out, fallback)
	return out
}
