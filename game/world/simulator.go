// Package world turns the objects at the player's location into synthetic
// interaction choices. Nothing here is authored content: definitions, rules
// and the nodes shown to the player are derived from the story on demand,
// and every state change goes through the story engine.
package world

import (
	"cmp"
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/game/engine"
	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/resource"
)

// Synthetic node ids understood by Route.
const (
	ActionPrefix = "SIM_ACTION:"
	ContinueID   = "SIM_CONTINUE"
	EndID        = "END"
)

// maxRandomMoves caps the movement options offered from a location that
// declares no connections.
const maxRandomMoves = 2

// Config configures a Simulator. Zero values get defaults; a nil RNG uses
// the session's own random source.
type Config struct {
	RNG    *rand.Rand
	Clock  func() time.Time
	Logger *zap.Logger
}

type Simulator struct {
	engine *engine.Engine
	rng    *rand.Rand
	clock  func() time.Time
	logger *zap.Logger
}

func NewSimulator(e *engine.Engine, cfg Config) *Simulator {
	if cfg.Clock == nil {
		cfg.Clock = e.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Simulator{engine: e, rng: cfg.RNG, clock: cfg.Clock, logger: cfg.Logger}
}

func (s *Simulator) random(sess *engine.Session) *rand.Rand {
	if s.rng != nil {
		return s.rng
	}
	return sess.RNG()
}

// CurrentLocation resolves where the player is: the current_location
// variable when it names a known location, else the current node's
// location, else the start node's. Entering an authored node that declares
// a location clears the variable, so moves only last until then.
func (s *Simulator) CurrentLocation(sess *engine.Session) string {
	if !sess.Loaded() {
		return ""
	}
	story := sess.Story
	if id := sess.State.Variables[state.CurrentLocationVar]; id != "" {
		if _, ok := story.Location(id); ok {
			return id
		}
	}
	if n, ok := story.Node(sess.State.CurrentNodeID); ok && n.LocationID != "" {
		return n.LocationID
	}
	if n, ok := story.Node(story.StartNodeID); ok {
		return n.LocationID
	}
	return ""
}

// AvailableInteractions lists the actions whose conditions hold for the
// location itself and the characters, items and enemies in it, highest
// priority first.
func (s *Simulator) AvailableInteractions(sess *engine.Session) []SimAction {
	if !sess.Loaded() {
		return nil
	}
	loc, ok := sess.Story.Location(s.CurrentLocation(sess))
	if !ok {
		return nil
	}
	ids := make([]string, 0, 1+len(loc.NPCs)+len(loc.Items)+len(loc.Enemies))
	ids = append(ids, loc.ID)
	ids = append(ids, loc.NPCs...)
	ids = append(ids, loc.Items...)
	ids = append(ids, loc.Enemies...)

	var actions []SimAction
	for _, id := range ids {
		def, ok := FindDefinition(sess.Story, id)
		if !ok {
			continue
		}
		for _, rule := range def.Interactions {
			if rule.ID == RuleMoveTo && id == loc.ID {
				continue
			}
			if rule.Condition != "" && !s.engine.EvaluateCondition(sess, expandCondition(rule.Condition, id)) {
				continue
			}
			actions = append(actions, SimAction{Rule: rule, TargetID: id, TargetName: def.Name})
		}
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Rule.Priority > actions[j].Rule.Priority
	})
	return actions
}

// SimAction finds ruleID on targetID among the available interactions.
// Moving to a location is always resolvable, wherever the player is.
func (s *Simulator) SimAction(sess *engine.Session, targetID, ruleID string) (SimAction, bool) {
	for _, a := range s.AvailableInteractions(sess) {
		if a.TargetID == targetID && a.Rule.ID == ruleID {
			return a, true
		}
	}
	if ruleID != RuleMoveTo || !sess.Loaded() {
		return SimAction{}, false
	}
	loc, ok := sess.Story.Location(targetID)
	if !ok {
		return SimAction{}, false
	}
	def := locationDefinition(loc)
	for _, rule := range def.Interactions {
		if rule.ID == RuleMoveTo {
			return SimAction{Rule: rule, TargetID: loc.ID, TargetName: def.Name}, true
		}
	}
	return SimAction{}, false
}

// ExecuteInteraction applies the action's effects and returns a dialogue
// node describing the result, connected back to ContinueID.
func (s *Simulator) ExecuteInteraction(ctx context.Context, sess *engine.Session, action SimAction) (resource.StoryNode, error) {
	if !sess.Loaded() {
		return resource.StoryNode{}, engine.ErrNotLoaded
	}
	text := action.Rule.Description
	for _, eff := range action.Rule.Effects {
		var err error
		switch x := eff.(type) {
		case ModifyState:
			s.modifyState(sess.State, action.TargetID, x)
		case ModifyVariable:
			err = s.engine.ApplyEffect(ctx, sess, resource.ModifyVariable{
				VariableName: x.Key,
				Operation:    variableOp(x.Operation),
				Value:        x.Value,
			})
		case GiveItem:
			err = s.engine.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: x.ItemID, Quantity: x.Count})
		case RemoveItem:
			err = s.engine.ApplyEffect(ctx, sess, resource.RemoveItem{ItemID: x.ItemID, Quantity: x.Count})
		case TriggerEvent:
			err = s.engine.ApplyEffect(ctx, sess, resource.TriggerEvent{EventID: x.EventID})
		case ShowMessage:
			text = x.Message
		}
		if err != nil {
			return resource.StoryNode{}, fmt.Errorf("interaction %s on %s: %w", action.Rule.ID, action.TargetID, err)
		}
	}

	node := resource.StoryNode{
		ID:          fmt.Sprintf("sim_%d", s.clock().UnixMilli()),
		Type:        resource.NodeDialogue,
		LocationID:  s.CurrentLocation(sess),
		Connections: []string{ContinueID},
		Content: resource.DialogueContent{
			Speaker: "System",
			Text:    resource.Render(text, map[string]string{"target.name": action.TargetName}),
		},
	}
	sess.SimNode = &node
	s.logger.Debug("interaction executed",
		zap.String("session_id", sess.ID),
		zap.String("target_id", action.TargetID),
		zap.String("rule_id", action.Rule.ID))
	return node, nil
}

// modifyState writes raw values; entity state is free text, not arithmetic.
func (s *Simulator) modifyState(gs *state.GameState, targetID string, x ModifyState) {
	if x.TargetID == GlobalTarget {
		gs.Variables[x.Key] = x.Value
		return
	}
	id := cmp.Or(x.TargetID, targetID)
	gs.EntityVariables[state.EntityKey(InferType(id), id, x.Key)] = x.Value
}

func variableOp(op string) resource.VariableOperation {
	switch op {
	case "ADD":
		return resource.OpAdd
	case "SUB":
		return resource.OpSubtract
	}
	return resource.OpSet
}

// GenerateChoiceNode builds the node listing every available interaction
// plus movement options, and remembers it on the session. With nothing to
// do it returns a dialogue node leading to EndID.
func (s *Simulator) GenerateChoiceNode(sess *engine.Session) (resource.StoryNode, error) {
	if !sess.Loaded() {
		return resource.StoryNode{}, engine.ErrNotLoaded
	}
	locID := s.CurrentLocation(sess)
	actions := s.AvailableInteractions(sess)
	node := resource.StoryNode{
		ID:         fmt.Sprintf("sim_choice_%d", s.clock().UnixMilli()),
		LocationID: locID,
	}

	if len(actions) == 0 {
		node.Type = resource.NodeDialogue
		node.Connections = []string{EndID}
		node.Content = resource.DialogueContent{Text: "All is still. There seems to be nothing left to do."}
		sess.SimNode = &node
		return node, nil
	}

	options := make([]resource.ChoiceOption, 0, len(actions))
	for i, a := range actions {
		text := a.Rule.Name + " " + a.TargetName
		if a.Rule.Type == InteractionObserve && a.TargetID == locID {
			text = "Look around"
		}
		options = append(options, resource.ChoiceOption{
			ID:         fmt.Sprintf("opt_%d", i),
			Text:       text,
			NextNodeID: ActionID(a.TargetID, a.Rule.ID),
		})
	}
	for i, loc := range s.moveTargets(sess, locID) {
		options = append(options, resource.ChoiceOption{
			ID:         fmt.Sprintf("move_%d", i),
			Text:       "Go to " + loc.Name,
			NextNodeID: ActionID(loc.ID, RuleMoveTo),
		})
	}

	node.Type = resource.NodeChoice
	node.Content = resource.ChoiceContent{Prompt: "What will you do?", Options: options}
	sess.SimNode = &node
	return node, nil
}

// moveTargets returns the locations connected to locID. A location without
// declared connections offers a random sample of the others instead, which
// need not cover every reachable place.
func (s *Simulator) moveTargets(sess *engine.Session, locID string) []resource.Location {
	var others []resource.Location
	for _, l := range sess.Story.Locations {
		if l.ID != locID {
			others = append(others, l)
		}
	}
	cur, _ := sess.Story.Location(locID)
	if len(cur.ConnectedLocationIDs) > 0 {
		return slices.DeleteFunc(others, func(l resource.Location) bool {
			return !slices.Contains(cur.ConnectedLocationIDs, l.ID)
		})
	}
	rng := s.random(sess)
	rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })
	return others[:min(maxRandomMoves, len(others))]
}

// ActionID encodes a synthetic navigation id for targetID and ruleID.
func ActionID(targetID, ruleID string) string {
	return ActionPrefix + targetID + ":" + ruleID
}

// ParseActionID splits a SIM_ACTION id. The rule id is the last segment, so
// target ids may contain colons.
func ParseActionID(id string) (targetID, ruleID string, ok bool) {
	rest, ok := strings.CutPrefix(id, ActionPrefix)
	if !ok {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, ':')
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// Route follows nodeID the way a navigation layer must: SIM_ACTION ids run
// the interaction, ContinueID regenerates the choice node and anything else
// is an ordinary story node.
func (s *Simulator) Route(ctx context.Context, sess *engine.Session, nodeID string) (*resource.StoryNode, error) {
	switch {
	case nodeID == ContinueID:
		node, err := s.GenerateChoiceNode(sess)
		if err != nil {
			return nil, err
		}
		return &node, nil

	case strings.HasPrefix(nodeID, ActionPrefix):
		target, rule, ok := ParseActionID(nodeID)
		if !ok {
			return nil, fmt.Errorf("action %q: %w", nodeID, engine.ErrNotFound)
		}
		action, ok := s.SimAction(sess, target, rule)
		if !ok {
			return nil, fmt.Errorf("action %s on %s: %w", rule, target, engine.ErrNotFound)
		}
		node, err := s.ExecuteInteraction(ctx, sess, action)
		if err != nil {
			return nil, err
		}
		return &node, nil

	case nodeID == EndID && sess.Loaded():
		if _, ok := sess.Story.Node(EndID); !ok {
			return nil, fmt.Errorf("node %q: %w", nodeID, engine.ErrNoNextNode)
		}
	}
	return s.engine.NavigateToNode(ctx, sess, nodeID)
}

// Check reports whether Route can follow nodeID, without changing the
// session.
func (s *Simulator) Check(sess *engine.Session, nodeID string) error {
	if !sess.Loaded() {
		return engine.ErrNotLoaded
	}
	switch {
	case nodeID == ContinueID:
		return nil
	case strings.HasPrefix(nodeID, ActionPrefix):
		target, rule, ok := ParseActionID(nodeID)
		if !ok {
			return fmt.Errorf("action %q: %w", nodeID, engine.ErrNotFound)
		}
		if _, ok := s.SimAction(sess, target, rule); !ok {
			return fmt.Errorf("action %s on %s: %w", rule, target, engine.ErrNotFound)
		}
		return nil
	}
	if _, ok := sess.Story.Node(nodeID); !ok {
		if nodeID == EndID {
			return fmt.Errorf("node %q: %w", nodeID, engine.ErrNoNextNode)
		}
		return fmt.Errorf("node %q: %w", nodeID, engine.ErrNotFound)
	}
	return nil
}

// Choose picks optionID from the node the player is looking at. Options of
// a generated node are routed directly; authored options are applied by the
// engine and their target routed here, so an authored option may lead to
// ContinueID or an action id. The target is checked before any effect runs.
func (s *Simulator) Choose(ctx context.Context, sess *engine.Session, optionID string) (*resource.StoryNode, error) {
	if sess.Loaded() && sess.SimNode != nil {
		choice, ok := sess.SimNode.Content.(resource.ChoiceContent)
		if !ok {
			return nil, fmt.Errorf("node %q is not a choice: %w", sess.SimNode.ID, engine.ErrNotFound)
		}
		for _, opt := range choice.Options {
			if opt.ID == optionID {
				return s.Route(ctx, sess, opt.NextNodeID)
			}
		}
		return nil, fmt.Errorf("option %q: %w", optionID, engine.ErrNotFound)
	}

	opt, err := s.engine.Option(sess, optionID)
	if err != nil {
		return nil, err
	}
	if err := s.Check(sess, opt.NextNodeID); err != nil {
		return nil, fmt.Errorf("option %q: %w", optionID, err)
	}
	if err := s.engine.ApplyChoice(ctx, sess, opt); err != nil {
		return nil, err
	}
	return s.Route(ctx, sess, opt.NextNodeID)
}
