// Package gamification assembles the engine with storage, catalog, realtime,
// and webhook wiring behind a small functional-options constructor.
package gamification

import (
	"context"

	mem "learnxp/adapters/memory"
	"learnxp/core"
	"learnxp/engine"
	"learnxp/integrations/webhook"
	"learnxp/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	catalog *core.Catalog
	mode    engine.DispatchMode
	hub     *realtime.Hub
	sink    *webhook.Sink
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithCatalog sets the badge/achievement catalog.
func WithCatalog(cat *core.Catalog) Option { return func(c *config) { c.catalog = cat } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all committed events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithWebhooks wires a webhook sink to receive all committed events.
func WithWebhooks(s *webhook.Sink) Option { return func(c *config) { c.sink = s } }

// streamedEvents are the event types bridged to realtime and webhook consumers.
var streamedEvents = []core.EventType{
	core.EventXPAwarded,
	core.EventLevelUp,
	core.EventBadgeAwarded,
	core.EventBadgeRevoked,
	core.EventAchievementUnlocked,
}

// New builds a configured engine.Service. Defaults:
//   - storage: in-memory
//   - catalog: core.DefaultCatalog
//   - dispatch: async
func New(opts ...Option) *engine.Service {
	cfg := &config{mode: engine.DispatchAsync, catalog: core.DefaultCatalog()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}

	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewService(cfg.storage, bus, cfg.catalog)

	if cfg.hub != nil {
		for _, typ := range streamedEvents {
			bus.Subscribe(typ, func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
		}
	}
	if cfg.sink != nil {
		for _, typ := range streamedEvents {
			bus.Subscribe(typ, func(_ context.Context, e core.Event) { cfg.sink.OnEvent(e) })
		}
	}
	return svc
}
