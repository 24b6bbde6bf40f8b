package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/wildfire-linker/internal/domain"
)

// Linker matches one incident against the loaded zones.
type Linker interface {
	Link(src domain.SourceEntity) (domain.Linked, error)
}

// LinkTransformer parses an incident, optionally reverse-geocodes it, links
// it, and serializes the linked record.
type LinkTransformer struct {
	linker         Linker
	geocoder       domain.Geocoder
	logger         *slog.Logger
	withRejections bool
}

// NewTransformer creates a LinkTransformer. Pass a nil geocoder to disable
// place enrichment.
func NewTransformer(linker Linker, geocoder domain.Geocoder, logger *slog.Logger, withRejections bool) *LinkTransformer {
	return &LinkTransformer{
		linker:         linker,
		geocoder:       geocoder,
		logger:         logger,
		withRejections: withRejections,
	}
}

func (t *LinkTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	src, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	if src.DataErr != nil {
		t.logger.Warn("source data ignored", "source_id", src.ID, "error", src.DataErr)
	}

	src = domain.EnrichWithPlace(ctx, src, t.geocoder, t.logger)

	linked, err := t.linker.Link(src)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("link: %w", err)
	}

	rec := domain.NewLinkedRecord(linked, t.withRejections)
	if rec.Status == domain.StatusDisagreement {
		t.logger.Info("incident left unresolved", "source_id", src.ID)
	}
	return domain.NewOutputEvent(rec)
}
