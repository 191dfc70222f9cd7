package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	mem "learnxp/adapters/memory"
	ws "learnxp/adapters/websocket"
	"learnxp/core"
	"learnxp/engine"
	"learnxp/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchAsync)
	svc := engine.NewService(store, bus, core.DefaultCatalog())
	hub := realtime.NewHub()

	// Forward committed events to WebSocket clients
	bus.Subscribe(core.EventXPAwarded, func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	bus.Subscribe(core.EventLevelUp, func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	bus.Subscribe(core.EventBadgeAwarded, func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	bus.Subscribe(core.EventAchievementUnlocked, func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /users/{id}, /users/{id}/xp?amount=50, /users/{id}/badges/{badge}, GET /users/{id}
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		switch r.Method {
		case http.MethodPost:
			if len(parts) == 2 {
				err := svc.CreateUser(ctx, user)
				writeJSON(w, map[string]any{"ok": err == nil, "err": errString(err)})
				return
			}
			if len(parts) >= 3 && parts[2] == "xp" {
				amount, _ := strconv.ParseInt(r.URL.Query().Get("amount"), 10, 64)
				res, err := svc.AwardXP(ctx, user, amount, r.URL.Query().Get("reason"))
				writeJSON(w, map[string]any{"result": res, "err": errString(err)})
				return
			}
			if len(parts) >= 4 && parts[2] == "badges" {
				badge := core.Badge(parts[3])
				err := svc.AwardBadge(ctx, user, badge)
				writeJSON(w, map[string]any{"ok": err == nil, "err": errString(err)})
				return
			}
		case http.MethodGet:
			stats, err := svc.Stats(ctx, user)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, stats)
			return
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
