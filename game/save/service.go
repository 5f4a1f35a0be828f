// Package save persists game-state snapshots in per-player save slots.
package save

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/model"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/resource"
)

const (
	MaxSaveSlots = 10
	AutoSaveSlot = 0

	previewRunes = 50
)

var (
	ErrInvalidSlot = errors.New("invalid save slot")
	ErrNotFound    = errors.New("save not found")
)

type Config struct {
	DB       *gorm.DB
	Hooks    *hook.Center
	Logger   *zap.Logger
	Clock    func() time.Time
	MaxSlots int // defaults to MaxSaveSlots
}

// Service handles save slot operations.
type Service struct {
	db       *gorm.DB
	hooks    *hook.Center
	logger   *zap.Logger
	clock    func() time.Time
	maxSlots int
}

func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = MaxSaveSlots
	}
	return &Service{
		db:       cfg.DB,
		hooks:    cfg.Hooks,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		maxSlots: cfg.MaxSlots,
	}
}

func (svc *Service) MaxSlots() int { return svc.maxSlots }

func (svc *Service) checkSlot(slot int) error {
	if slot < 0 || slot >= svc.maxSlots {
		return fmt.Errorf("slot %d: %w", slot, ErrInvalidSlot)
	}
	return nil
}

// newSaveID is unique across owners; slot and time only make it readable.
func newSaveID(slot int, now time.Time) string {
	return fmt.Sprintf("save_%d_%d_%s", slot, now.UnixMilli(), uuid.NewString())
}

// Save snapshots sess into slot, replacing whatever the slot held.
func (svc *Service) Save(ctx context.Context, ownerID string, slot int, sess *engine.Session) (state.SaveData, error) {
	if err := svc.checkSlot(slot); err != nil {
		return state.SaveData{}, err
	}
	if !sess.Loaded() {
		return state.SaveData{}, engine.ErrNotLoaded
	}
	raw, err := json.Marshal(sess.State)
	if err != nil {
		return state.SaveData{}, fmt.Errorf("encode state: %w", err)
	}
	now := svc.clock()
	rec := &model.SaveRecord{
		ID:         newSaveID(slot, now),
		OwnerID:    ownerID,
		SlotIndex:  slot,
		StoryID:    sess.Story.ID,
		StoryTitle: sess.Story.Title,
		State:      datatypes.JSON(raw),
		PlayTime:   sess.State.PlayTime,
		Preview:    Preview(sess),
		SavedAt:    now,
	}

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND slot_index = ?", ownerID, slot).
			Delete(&model.SaveRecord{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		svc.logger.Error("save failed",
			zap.String("session_id", sess.ID),
			zap.Int("slot", slot),
			zap.Error(err))
		return state.SaveData{}, fmt.Errorf("save slot %d: %w", slot, err)
	}

	_, _ = svc.hooks.Trigger(ctx, hook.OnGameSaved, hook.GameSaved{
		Scope:  sess.Scope(),
		SaveID: rec.ID,
		Slot:   slot,
	})
	svc.logger.Info("game saved",
		zap.String("session_id", sess.ID),
		zap.String("save_id", rec.ID),
		zap.Int("slot", slot))
	return toSaveData(rec, sess.State.Clone()), nil
}

// AutoSave saves into AutoSaveSlot.
func (svc *Service) AutoSave(ctx context.Context, ownerID string, sess *engine.Session) (state.SaveData, error) {
	return svc.Save(ctx, ownerID, AutoSaveSlot, sess)
}

// List returns the owner's saves ordered by slot. GameState is left nil.
func (svc *Service) List(ctx context.Context, ownerID string) ([]state.SaveData, error) {
	var recs []model.SaveRecord
	if err := svc.db.WithContext(ctx).
		Omit("state").
		Where("owner_id = ?", ownerID).
		Order("slot_index").
		Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]state.SaveData, len(recs))
	for i := range recs {
		out[i] = toSaveData(&recs[i], nil)
	}
	return out, nil
}

// Load returns one save of ownerID with its decoded state.
func (svc *Service) Load(ctx context.Context, ownerID, saveID string) (state.SaveData, error) {
	var rec model.SaveRecord
	err := svc.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", saveID, ownerID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return state.SaveData{}, fmt.Errorf("save %q: %w", saveID, ErrNotFound)
	}
	if err != nil {
		return state.SaveData{}, err
	}
	gs := &state.GameState{}
	if err := json.Unmarshal(rec.State, gs); err != nil {
		return state.SaveData{}, fmt.Errorf("decode save %q: %w", saveID, err)
	}
	return toSaveData(&rec, gs), nil
}

// Delete empties slot. Deleting an empty slot is not an error.
func (svc *Service) Delete(ctx context.Context, ownerID string, slot int) error {
	if err := svc.checkSlot(slot); err != nil {
		return err
	}
	return svc.db.WithContext(ctx).
		Where("owner_id = ? AND slot_index = ?", ownerID, slot).
		Delete(&model.SaveRecord{}).Error
}

// AvailableSlots returns the owner's empty slots in ascending order.
func (svc *Service) AvailableSlots(ctx context.Context, ownerID string) ([]int, error) {
	var used []int
	if err := svc.db.WithContext(ctx).Model(&model.SaveRecord{}).
		Where("owner_id = ?", ownerID).
		Pluck("slot_index", &used).Error; err != nil {
		return nil, err
	}
	taken := make(map[int]bool, len(used))
	for _, s := range used {
		taken[s] = true
	}
	free := make([]int, 0, svc.maxSlots)
	for s := 0; s < svc.maxSlots; s++ {
		if !taken[s] {
			free = append(free, s)
		}
	}
	return free, nil
}

func toSaveData(rec *model.SaveRecord, gs *state.GameState) state.SaveData {
	return state.SaveData{
		ID:                 rec.ID,
		SlotIndex:          rec.SlotIndex,
		StoryID:            rec.StoryID,
		StoryTitle:         rec.StoryTitle,
		GameState:          gs,
		Timestamp:          rec.SavedAt,
		PlayTime:           rec.PlayTime,
		CurrentNodePreview: rec.Preview,
	}
}

// Preview summarizes where sess stands: the dialogue text or choice prompt
// cut to 50 runes, or the ending's title. The last world node shown takes
// precedence over the story node.
func Preview(sess *engine.Session) string {
	var content resource.NodeContent
	if sess.SimNode != nil {
		content = sess.SimNode.Content
	} else if n, err := sess.CurrentNode(); err == nil {
		content = n.Content
	}
	switch c := content.(type) {
	case resource.DialogueContent:
		return truncate(c.Text)
	case resource.ChoiceContent:
		return truncate(c.Prompt)
	case resource.EndingContent:
		return c.Title
	}
	return ""
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes])
}
