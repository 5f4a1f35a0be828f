package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/save"
	"github.com/kasuganosora/novelsim/game/session"
)

// Task names registered by RegisterSessionTasks.
const (
	TaskPlayTime = "play_time"
	TaskAutosave = "autosave"
	TaskSweep    = "session_sweep"
)

const sweepEvery = time.Minute

// SessionTasks holds what the periodic session work needs. A zero interval
// disables the corresponding task.
type SessionTasks struct {
	Engine           *engine.Engine
	Sessions         *session.Manager
	Saves            *save.Service
	PlayTimeTick     time.Duration
	AutosaveInterval time.Duration
	Logger           *zap.Logger
}

// RegisterSessionTasks adds the play-time, autosave and sweep tickers to s.
func RegisterSessionTasks(s *Scheduler, t SessionTasks) {
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	if t.PlayTimeTick > 0 {
		s.AddTicker(TaskPlayTime, t.PlayTimeTick, t.TickPlayTime)
	}
	if t.AutosaveInterval > 0 && t.Saves != nil {
		s.AddTicker(TaskAutosave, t.AutosaveInterval, t.AutosaveAll)
	}
	s.AddTicker(TaskSweep, sweepEvery, func(ctx context.Context) {
		t.Sessions.Sweep(ctx)
	})
}

// TickPlayTime adds one tick of play time to every live session.
func (t SessionTasks) TickPlayTime(ctx context.Context) {
	seconds := int64(t.PlayTimeTick / time.Second)
	t.Sessions.Each(ctx, func(sess *engine.Session, _ string) error {
		return t.Engine.UpdatePlayTime(sess, seconds)
	})
}

// AutosaveAll writes the autosave slot of every live session.
func (t SessionTasks) AutosaveAll(ctx context.Context) {
	n := 0
	t.Sessions.Each(ctx, func(sess *engine.Session, playerID string) error {
		if _, err := t.Saves.AutoSave(ctx, playerID, sess); err != nil {
			return err
		}
		n++
		return nil
	})
	t.Logger.Debug("autosave pass", zap.Int("saved", n))
}
