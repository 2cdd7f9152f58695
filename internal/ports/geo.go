package ports

import (
	"context"

	"github.com/Peuqui/endlessh-exporter/internal/domain"
)

// GeoResolver maps an origin address to a location.
//
// Implementations must carry a short timeout and fail open: on any failure
// they return domain.UnknownLocation() together with the error, so the
// reconciliation pass never depends on network behavior for correctness,
// only for completeness of location labels.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (domain.GeoLocation, error)
}
