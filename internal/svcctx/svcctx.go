// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/carepill/pillscan/internal/catalog"
	"github.com/carepill/pillscan/internal/home"
	"github.com/carepill/pillscan/internal/meds"
	"github.com/carepill/pillscan/internal/scan"
	"github.com/carepill/pillscan/internal/vision"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Catalog  *catalog.Store
	Meds     *meds.Store
	Vision   *vision.Registry
	Pipeline *scan.Pipeline
	Logger   *slog.Logger
	Home     *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// CatalogFrom extracts the medicine catalog from context.
func CatalogFrom(ctx context.Context) *catalog.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Catalog
	}
	return nil
}

// MedsFrom extracts the medication store from context.
func MedsFrom(ctx context.Context) *meds.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Meds
	}
	return nil
}

// VisionFrom extracts the vision provider registry from context.
func VisionFrom(ctx context.Context) *vision.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Vision
	}
	return nil
}

// PipelineFrom extracts the scan pipeline from context.
func PipelineFrom(ctx context.Context) *scan.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
