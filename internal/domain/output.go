package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Match status values for the match_status header.
const (
	StatusMatched      = "matched"
	StatusUnmatched    = "unmatched"
	StatusDisagreement = "disagreement"
)

// LinkedRecord is a source flattened together with its authoritative match.
type LinkedRecord struct {
	SourceID   string          `json:"source_id"`
	SourceName string          `json:"source_name"`
	Lat        float64         `json:"lat"`
	Lng        float64         `json:"lng"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	Attributes Attributes      `json:"attributes"`
	Data       json.RawMessage `json:"data,omitempty"`

	Mode   Mode   `json:"mode"`
	Status string `json:"match_status"`

	EvacuationZone          string   `json:"evacuation_zone,omitempty"`
	EvacuationZoneID        string   `json:"evacuation_zone_id,omitempty"`
	EvacuationSource        string   `json:"evacuation_source,omitempty"`
	EvacuationDataset       string   `json:"evacuation_dataset,omitempty"`
	EvacuationDistanceMiles *float64 `json:"evacuation_distance_miles,omitempty"`

	Match          *MatchResult    `json:"match,omitempty"`
	Reconciliation *Reconciliation `json:"reconciliation,omitempty"`
	Rejections     []Rejection     `json:"rejections,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// NewLinkedRecord flattens a Linked outcome, stamping processed_at from the
// package clock. Rejections are included only when withRejections is set.
func NewLinkedRecord(l Linked, withRejections bool) LinkedRecord {
	rec := LinkedRecord{
		SourceID:       l.Source.ID,
		SourceName:     l.Source.Name,
		Lat:            l.Source.Location.Lat,
		Lng:            l.Source.Location.Lng,
		Timestamp:      l.Source.Timestamp,
		Attributes:     l.Source.Attributes,
		Data:           l.Source.Attributes.Extra,
		Mode:           l.Mode,
		Status:         StatusUnmatched,
		Match:          l.Match,
		Reconciliation: l.Reconciliation,
		ProcessedAt:    clock.Now().UTC(),
	}
	if withRejections {
		rec.Rejections = l.Rejections
	}

	if best := l.Best(); best != nil {
		d := best.DistanceMiles
		rec.Status = StatusMatched
		rec.EvacuationZone = best.TargetName
		rec.EvacuationZoneID = best.TargetID
		rec.EvacuationSource = best.Attribution
		rec.EvacuationDataset = best.Dataset
		rec.EvacuationDistanceMiles = &d
	} else if l.Reconciliation != nil && l.Reconciliation.Decision == DecisionDisagreement {
		rec.Status = StatusDisagreement
	}
	return rec
}

// NewOutputEvent serializes a LinkedRecord for the sink topic.
func NewOutputEvent(rec LinkedRecord) (OutputEvent, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize linked record: %w", err)
	}
	return OutputEvent{
		Key:   []byte(rec.SourceID),
		Value: data,
		Headers: map[string]string{
			"match_status": rec.Status,
			"processed_at": rec.ProcessedAt.Format(time.RFC3339),
		},
	}, nil
}
