package services

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/speakwell-backend/internal/data/repos"
	"github.com/yungbote/speakwell-backend/internal/data/repos/testutil"
	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
	"github.com/yungbote/speakwell-backend/internal/realtime"
)

type testEnv struct {
	ctx  context.Context
	db   *gorm.DB
	log  *logger.Logger
	rs   repos.Set
	emit *recordingEmitter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	return &testEnv{
		ctx:  context.Background(),
		db:   db,
		log:  log,
		rs:   repos.NewSet(db, log),
		emit: &recordingEmitter{},
	}
}

func (e *testEnv) notifier() Notifier { return NewNotifier(e.emit) }

type recordingEmitter struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (r *recordingEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingEmitter) events(event realtime.SSEEvent) []realtime.SSEMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []realtime.SSEMessage
	for _, m := range r.msgs {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

func dbcFor(e *testEnv) dbctx.Context { return dbctx.Context{Ctx: e.ctx} }

func testContext() context.Context { return context.Background() }
