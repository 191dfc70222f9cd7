package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"learnxp/core"
)

func TestSink_OnEventPostsToEndpoints(t *testing.T) {
	var hits int32
	var lastType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		var ev core.Event
		_ = json.Unmarshal(body, &ev)
		lastType.Store(ev.Type)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL})
	sink.OnEvent(core.NewLevelUp("u1", 5, 510))

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	if lastType.Load() != core.EventLevelUp {
		t.Fatalf("expected level_up payload, got %v", lastType.Load())
	}
}

func TestSink_NoEndpointsIsNoOp(t *testing.T) {
	sink := New(nil)
	// must not panic or block
	sink.OnEvent(core.NewBadgeAwarded("u1", "level-5", 5))
}
