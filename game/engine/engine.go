// Package engine drives a story session: it loads stories, moves between
// nodes, applies choices and effects, and folds battle results back into the
// game state. All session state lives in *Session; the Engine itself only
// holds collaborators and is safe to share between sessions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kasuganosora/novelsim/game/battle"
	"github.com/kasuganosora/novelsim/game/condition"
	"github.com/kasuganosora/novelsim/game/effect"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/resource"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConditionNotMet = errors.New("condition not met")
	ErrNotLoaded       = errors.New("no story loaded")
	ErrNoNextNode      = errors.New("no next node")
	ErrInvalidItem     = errors.New("invalid item")
	ErrNavigationLoop  = errors.New("navigation loop")
	ErrNoBattle        = errors.New("no battle in progress")
	ErrBattleActive    = errors.New("battle still in progress")
)

// maxHops bounds how many auto-resolving nodes one navigation may pass.
const maxHops = 64

// Config holds the Engine's collaborators. Only Repo is required.
type Config struct {
	Repo   resource.Repository
	Hooks  *hook.Center
	Logger *zap.Logger
	Clock  func() time.Time
	// NewRNG returns the random source for a new session.
	NewRNG func() *rand.Rand
}

type Engine struct {
	repo   resource.Repository
	hooks  *hook.Center
	logger *zap.Logger
	clock  func() time.Time
	newRNG func() *rand.Rand
}

func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewRNG == nil {
		cfg.NewRNG = func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) }
	}
	return &Engine{
		repo:   cfg.Repo,
		hooks:  cfg.Hooks,
		logger: cfg.Logger,
		clock:  cfg.Clock,
		newRNG: cfg.NewRNG,
	}
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock() }

// ---- Session ----

// Session is one play-through of one story. It is not safe for concurrent
// use; callers serialize access.
type Session struct {
	ID    string
	Story *resource.Story
	State *state.GameState

	Events  map[string]resource.GameEvent
	Enemies map[string]resource.Enemy
	Skills  map[string]resource.Skill

	// Battle is the encounter in progress, if any.
	Battle *battle.BattleState
	// SimNode is the last world-simulation node shown to the player.
	SimNode *resource.StoryNode

	rng    *rand.Rand
	battle *battle.System
}

// Loaded reports whether s holds a story and a state.
func (s *Session) Loaded() bool {
	return s != nil && s.Story != nil && s.State != nil
}

// RNG returns the session's random source.
func (s *Session) RNG() *rand.Rand { return s.rng }

// Scope identifies s in hook payloads.
func (s *Session) Scope() hook.Scope {
	return hook.Scope{SessionID: s.ID, StoryID: s.Story.ID}
}

// CurrentNode returns the node the session is on.
func (s *Session) CurrentNode() (resource.StoryNode, error) {
	if !s.Loaded() {
		return resource.StoryNode{}, ErrNotLoaded
	}
	n, ok := s.Story.Node(s.State.CurrentNodeID)
	if !ok {
		return resource.StoryNode{}, fmt.Errorf("node %q: %w", s.State.CurrentNodeID, ErrNotFound)
	}
	return n, nil
}

func (s *Session) effectEnv() effect.Env {
	return effect.Env{Story: s.Story, Events: s.Events}
}

// ---- Loading ----

type content struct {
	story   *resource.Story
	events  []resource.GameEvent
	enemies []resource.Enemy
}

// fetch loads a story together with its events and enemies.
func (e *Engine) fetch(ctx context.Context, storyID string) (*content, error) {
	if e.repo == nil {
		return nil, fmt.Errorf("story %q: %w", storyID, ErrNotFound)
	}
	var c content
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		story, err := e.repo.StoryByID(gctx, storyID)
		if errors.Is(err, resource.ErrNotFound) {
			return fmt.Errorf("story %q: %w", storyID, ErrNotFound)
		}
		c.story = story
		return err
	})
	g.Go(func() error {
		events, err := e.repo.Events(gctx, storyID)
		c.events = events
		return err
	})
	g.Go(func() error {
		enemies, err := e.repo.Enemies(gctx, storyID)
		c.enemies = enemies
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if c.story == nil {
		return nil, fmt.Errorf("story %q: %w", storyID, ErrNotFound)
	}
	return &c, nil
}

func (e *Engine) newSession(c *content, st *state.GameState) *Session {
	sess := &Session{
		ID:      uuid.NewString(),
		Story:   c.story,
		State:   st,
		Events:  make(map[string]resource.GameEvent, len(c.events)),
		Enemies: make(map[string]resource.Enemy, len(c.enemies)),
		Skills:  make(map[string]resource.Skill, len(c.story.Skills)),
		rng:     e.newRNG(),
	}
	for _, ev := range c.events {
		sess.Events[ev.ID] = ev
	}
	for _, en := range c.enemies {
		sess.Enemies[en.ID] = en
	}
	for _, sk := range c.story.Skills {
		sess.Skills[sk.ID] = sk
	}
	sess.battle = battle.NewSystem(battle.Config{RNG: sess.rng, Logger: e.logger})
	return sess
}

// LoadStory starts a new session on storyID at its start node.
func (e *Engine) LoadStory(ctx context.Context, storyID string) (*Session, *resource.StoryNode, error) {
	c, err := e.fetch(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := c.story.Node(c.story.StartNodeID); !ok {
		return nil, nil, fmt.Errorf("start node %q: %w", c.story.StartNodeID, ErrNotFound)
	}

	st := state.New(c.story.ID)
	for k, v := range c.story.InitialVariables {
		st.Variables[k] = v
	}
	for _, inst := range c.story.CustomItems {
		st.ItemInstances[inst.UID] = inst
	}
	sess := e.newSession(c, st)
	e.logger.Info("story loaded",
		zap.String("session_id", sess.ID),
		zap.String("story_id", c.story.ID),
		zap.Int("nodes", len(c.story.Nodes)),
		zap.Int("events", len(sess.Events)),
		zap.Int("enemies", len(sess.Enemies)))
	_ = e.fire(ctx, hook.OnSessionStart, hook.SessionStarted{Scope: sess.Scope()})

	node, err := e.NavigateToNode(ctx, sess, c.story.StartNodeID)
	if err != nil {
		return nil, nil, err
	}
	return sess, node, nil
}

// LoadFromSave restores a session from a snapshot. The story is fetched
// fresh; the saved node must still exist in it.
func (e *Engine) LoadFromSave(ctx context.Context, save state.SaveData) (*Session, *resource.StoryNode, error) {
	if save.GameState == nil {
		return nil, nil, fmt.Errorf("save %q has no state: %w", save.ID, ErrNotFound)
	}
	c, err := e.fetch(ctx, save.StoryID)
	if err != nil {
		return nil, nil, err
	}
	node, ok := c.story.Node(save.GameState.CurrentNodeID)
	if !ok {
		return nil, nil, fmt.Errorf("saved node %q: %w", save.GameState.CurrentNodeID, ErrNotFound)
	}
	sess := e.newSession(c, save.GameState.Clone())
	e.logger.Info("save restored",
		zap.String("session_id", sess.ID),
		zap.String("save_id", save.ID),
		zap.String("node_id", node.ID))
	_ = e.fire(ctx, hook.OnSessionStart, hook.SessionStarted{Scope: sess.Scope(), FromSave: save.ID})
	return sess, &node, nil
}

// ---- Conditions, effects, flags ----

// EvaluateCondition evaluates expr against the session. An unloaded session
// evaluates every condition to false.
func (e *Engine) EvaluateCondition(sess *Session, expr string) bool {
	if !sess.Loaded() {
		return false
	}
	return condition.Evaluate(expr, sess.State, sess.Story)
}

// ApplyEffect applies one effect to the session state.
func (e *Engine) ApplyEffect(ctx context.Context, sess *Session, eff resource.Effect) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	if err := effect.Apply(eff, sess.State, sess.effectEnv()); err != nil {
		e.logger.Warn("effect not applied", zap.String("session_id", sess.ID), zap.Error(err))
		return err
	}
	kind := ""
	if eff != nil {
		kind = eff.Kind()
	}
	_ = e.fire(ctx, hook.OnEffectApplied, hook.EffectApplied{Scope: sess.Scope(), Effect: eff, Kind: kind})
	return nil
}

// ExecuteVariableAction applies a VARIABLE_ACTION node's operation.
func (e *Engine) ExecuteVariableAction(ctx context.Context, sess *Session, va resource.VariableActionContent) error {
	return e.ApplyEffect(ctx, sess, resource.ModifyVariable{
		VariableName: va.VariableName,
		Operation:    va.Operation,
		Value:        va.Value,
	})
}

func (e *Engine) SetFlag(sess *Session, name string) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	sess.State.Flags[name] = struct{}{}
	return nil
}

func (e *Engine) ClearFlag(sess *Session, name string) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	delete(sess.State.Flags, name)
	return nil
}

// UpdatePlayTime adds seconds to the session's play time.
func (e *Engine) UpdatePlayTime(sess *Session, seconds int64) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	if seconds > 0 {
		sess.State.PlayTime += seconds
	}
	return nil
}

func (e *Engine) fire(ctx context.Context, event string, data any) error {
	_, err := e.hooks.Trigger(ctx, event, data)
	return err
}
