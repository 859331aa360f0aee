package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	coremqtt "github.com/kilianp07/fieldassign/core/mqtt"
	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
	"github.com/kilianp07/fieldassign/core/session"
	"github.com/kilianp07/fieldassign/infra/logger"
	"github.com/kilianp07/fieldassign/internal/eventbus"
)

// TablePayload is the retained message a map layer renders from.
type TablePayload struct {
	RunID       string                `json:"run_id"`
	SessionID   string                `json:"session_id"`
	Instruction string                `json:"instruction"`
	Rule        model.InstructionKind `json:"rule"`
	Summary     string                `json:"summary"`
	Time        time.Time             `json:"time"`
	Office      model.Office          `json:"office"`
	Sites       []model.Site          `json:"sites"`
	Stats       result.Stats          `json:"stats"`
	Routes      []RoutePayload        `json:"routes"`
	Markers     []result.Marker       `json:"markers"`
}

// RoutePayload is one staff member's route polyline.
type RoutePayload struct {
	Staff model.StaffID    `json:"staff"`
	Color string           `json:"color,omitempty"`
	Sites []string         `json:"sites"`
	Path  []model.Location `json:"path"`
}

// NewTablePayload renders a run event.
func NewTablePayload(ev session.RunEvent) TablePayload {
	t := ev.Table
	p := TablePayload{
		RunID:       ev.RunID,
		SessionID:   ev.SessionID,
		Instruction: ev.Instruction,
		Rule:        ev.Rule,
		Summary:     ev.Summary,
		Time:        ev.Time,
		Office:      t.Office,
		Sites:       t.Sites,
		Stats:       t.Stats(),
		Markers:     t.Markers(),
	}
	for _, r := range t.Routes() {
		rp := RoutePayload{Staff: r.Staff.ID, Color: r.Staff.Color, Path: r.Path(t.Office)}
		for _, s := range r.Sites {
			rp.Sites = append(rp.Sites, s.Name)
		}
		p.Routes = append(p.Routes, rp)
	}
	return p
}

// TableFeed publishes the table of every run as a retained message.
type TableFeed struct {
	pub    coremqtt.Publisher
	cfg    Config
	logger logger.Logger
}

// NewTableFeed creates a feed publishing through pub.
func NewTableFeed(pub coremqtt.Publisher, cfg Config) *TableFeed {
	cfg.SetDefaults()
	return &TableFeed{pub: pub, cfg: cfg, logger: logger.New("mqtt_feed")}
}

// PublishRun publishes the table produced by ev.
func (f *TableFeed) PublishRun(ctx context.Context, ev session.RunEvent) error {
	payload, err := json.Marshal(NewTablePayload(ev))
	if err != nil {
		return fmt.Errorf("encode table: %w", err)
	}
	return f.pub.Publish(ctx, f.cfg.TableTopic(ev.SessionID), payload, true)
}

// ClearSession removes the retained table of a deleted session.
func (f *TableFeed) ClearSession(ctx context.Context, sessionID string) error {
	return f.pub.Publish(ctx, f.cfg.TableTopic(sessionID), []byte{}, true)
}

// Forward publishes every run event of bus until ctx is done. The returned
// channel is closed when forwarding stops.
func (f *TableFeed) Forward(ctx context.Context, bus *eventbus.Bus[session.RunEvent]) <-chan struct{} {
	return bus.Handle(ctx, func(ev session.RunEvent) {
		if err := f.PublishRun(ctx, ev); err != nil {
			f.logger.Errorf("publish table for session %s: %v", ev.SessionID, err)
		}
	})
}
