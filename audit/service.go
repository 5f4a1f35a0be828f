package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kasuganosora/novelsim/middleware"
	"github.com/kasuganosora/novelsim/model"
	"github.com/kasuganosora/novelsim/plugin/hook"
)

const hookName = "audit"

// Entry holds one audit event to be logged.
type Entry struct {
	TraceID   string
	SessionID string
	StoryID   string
	Action    string
	Detail    any
	Error     string
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditLog
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Attach records every session event fired on hooks. The audit handler
// runs last and never vetoes.
func (svc *Service) Attach(hooks *hook.Center) {
	for _, event := range hook.Events {
		hooks.Register(event, 1000, hookName, svc.onEvent)
	}
}

func (svc *Service) onEvent(ctx context.Context, event string, data any) (any, error) {
	entry := Entry{
		TraceID: middleware.TraceIDFromContext(ctx),
		Action:  event,
		Detail:  data,
	}
	if s, ok := data.(hook.Scoped); ok {
		scope := s.EventScope()
		entry.SessionID = scope.SessionID
		entry.StoryID = scope.StoryID
	}
	svc.Log(entry)
	return data, nil
}

// Log enqueues an audit entry for async DB write.
func (svc *Service) Log(entry Entry) {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		svc.logger.Warn("audit detail not serializable",
			zap.String("action", entry.Action), zap.Error(err))
		detail = []byte("null")
	}
	record := &model.AuditLog{
		TraceID:   entry.TraceID,
		SessionID: entry.SessionID,
		StoryID:   entry.StoryID,
		Action:    entry.Action,
		Detail:    datatypes.JSON(detail),
		Error:     entry.Error,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	svc.once.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= 100 {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
