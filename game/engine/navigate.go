package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kasuganosora/novelsim/game/state"
	"github.com/kasuganosora/novelsim/plugin/hook"
	"github.com/kasuganosora/novelsim/resource"
)

// NavigateToNode moves the session to id. CONDITION, VARIABLE_ACTION and
// ITEM_ACTION nodes resolve immediately and navigation continues along the
// edge they select; the returned node is the first one that waits for the
// player. An action node with no outgoing edge for its result is returned
// as is.
func (e *Engine) NavigateToNode(ctx context.Context, sess *Session, id string) (*resource.StoryNode, error) {
	if !sess.Loaded() {
		return nil, ErrNotLoaded
	}
	for hop := 0; hop < maxHops; hop++ {
		node, ok := sess.Story.Node(id)
		if !ok {
			return nil, fmt.Errorf("node %q: %w", id, ErrNotFound)
		}
		e.enter(ctx, sess, node)

		next, err := e.resolve(ctx, sess, node)
		if err != nil {
			return nil, err
		}
		if next == "" {
			return &node, nil
		}
		id = next
	}
	e.logger.Warn("navigation loop",
		zap.String("session_id", sess.ID),
		zap.String("node_id", id))
	return nil, fmt.Errorf("from %q after %d hops: %w", id, maxHops, ErrNavigationLoop)
}

func (e *Engine) enter(ctx context.Context, sess *Session, node resource.StoryNode) {
	sess.State.CurrentNodeID = node.ID
	sess.SimNode = nil
	if node.LocationID != "" {
		// an authored location supersedes an earlier move
		delete(sess.State.Variables, state.CurrentLocationVar)
	}
	if text := historyText(node); text != "" {
		sess.State.AddHistory(node.ID, state.HistoryNode, text, e.clock())
	}
	e.logger.Debug("node entered",
		zap.String("session_id", sess.ID),
		zap.String("node_id", node.ID),
		zap.String("type", string(node.Type)))
	_ = e.fire(ctx, hook.OnNodeEnter, hook.NodeEntered{Scope: sess.Scope(), NodeID: node.ID, NodeType: node.Type})
}

// historyText is the NODE history line for a node, empty for node types
// that are not recorded.
func historyText(node resource.StoryNode) string {
	switch c := node.Content.(type) {
	case resource.DialogueContent:
		return c.Text
	case resource.EndingContent:
		return c.Description
	case resource.BattleContent:
		return "encountered enemy: " + c.EnemyName
	}
	return ""
}

// resolve runs an auto-resolving node and returns the node to continue to,
// or "" to stop.
func (e *Engine) resolve(ctx context.Context, sess *Session, node resource.StoryNode) (string, error) {
	switch c := node.Content.(type) {
	case resource.ConditionContent:
		if e.EvaluateCondition(sess, c.Expression) {
			return c.TrueNextNodeID, nil
		}
		return c.FalseNextNodeID, nil

	case resource.VariableActionContent:
		if err := e.ExecuteVariableAction(ctx, sess, c); err != nil {
			return "", err
		}
		return c.NextNodeID, nil

	case resource.ItemActionContent:
		return e.executeItemAction(ctx, sess, c)
	}
	return "", nil
}

func (e *Engine) executeItemAction(ctx context.Context, sess *Session, c resource.ItemActionContent) (string, error) {
	qty := max(1, c.Quantity)
	switch c.Action {
	case resource.ItemActionGive:
		if err := e.ApplyEffect(ctx, sess, resource.GiveItem{ItemID: c.ItemID, Quantity: qty}); err != nil {
			return "", err
		}
		return c.NextNodeID, nil
	case resource.ItemActionRemove:
		if sess.State.ItemCount(c.ItemID) < qty {
			return c.FailNextNodeID, nil
		}
		if err := e.ApplyEffect(ctx, sess, resource.RemoveItem{ItemID: c.ItemID, Quantity: qty}); err != nil {
			return "", err
		}
		return c.NextNodeID, nil
	case resource.ItemActionCheck:
		if sess.State.ItemCount(c.ItemID) < qty {
			return c.FailNextNodeID, nil
		}
		return c.NextNodeID, nil
	}
	e.logger.Warn("unknown item action",
		zap.String("session_id", sess.ID),
		zap.String("action", string(c.Action)))
	return "", nil
}

// ProcessChoice applies option on the current node and follows it.
func (e *Engine) ProcessChoice(ctx context.Context, sess *Session, option resource.ChoiceOption) (*resource.StoryNode, error) {
	if !sess.Loaded() {
		return nil, ErrNotLoaded
	}
	if _, ok := sess.Story.Node(option.NextNodeID); !ok {
		return nil, fmt.Errorf("option %q leads to %q: %w", option.ID, option.NextNodeID, ErrNotFound)
	}
	if err := e.ApplyChoice(ctx, sess, option); err != nil {
		return nil, err
	}
	return e.NavigateToNode(ctx, sess, option.NextNodeID)
}

// ApplyChoice does everything ProcessChoice does except navigate: it checks
// the condition, lets before_choice veto, applies the effects and records
// the choice. Callers that route the target themselves must make sure it
// resolves first.
func (e *Engine) ApplyChoice(ctx context.Context, sess *Session, option resource.ChoiceOption) error {
	if !sess.Loaded() {
		return ErrNotLoaded
	}
	if option.Condition != "" && !e.EvaluateCondition(sess, option.Condition) {
		return fmt.Errorf("option %q: %w", option.ID, ErrConditionNotMet)
	}
	ev := hook.ChoiceMade{
		Scope:    sess.Scope(),
		NodeID:   sess.State.CurrentNodeID,
		OptionID: option.ID,
		Text:     option.Text,
	}
	if err := e.fire(ctx, hook.BeforeChoice, ev); errors.Is(err, hook.ErrInterrupt) {
		return fmt.Errorf("option %q: %w", option.ID, err)
	}

	for _, eff := range option.Effects {
		if err := e.ApplyEffect(ctx, sess, eff); err != nil {
			return fmt.Errorf("option %q: %w", option.ID, err)
		}
	}
	sess.State.AddHistory(ev.NodeID, state.HistoryChoice, option.Text, e.clock())
	_ = e.fire(ctx, hook.AfterChoice, ev)
	return nil
}

// Option looks optionID up on the current CHOICE node.
func (e *Engine) Option(sess *Session, optionID string) (resource.ChoiceOption, error) {
	node, err := sess.CurrentNode()
	if err != nil {
		return resource.ChoiceOption{}, err
	}
	choice, ok := node.Content.(resource.ChoiceContent)
	if !ok {
		return resource.ChoiceOption{}, fmt.Errorf("node %q is not a choice: %w", node.ID, ErrNotFound)
	}
	for _, opt := range choice.Options {
		if opt.ID == optionID {
			return opt, nil
		}
	}
	return resource.ChoiceOption{}, fmt.Errorf("option %q: %w", optionID, ErrNotFound)
}

// ChooseOption looks optionID up on the current CHOICE node and processes it.
func (e *Engine) ChooseOption(ctx context.Context, sess *Session, optionID string) (*resource.StoryNode, error) {
	opt, err := e.Option(sess, optionID)
	if err != nil {
		return nil, err
	}
	return e.ProcessChoice(ctx, sess, opt)
}

// AvailableOptions returns the options of the current CHOICE node whose
// conditions hold.
func (e *Engine) AvailableOptions(sess *Session) []resource.ChoiceOption {
	node, err := sess.CurrentNode()
	if err != nil {
		return nil
	}
	choice, ok := node.Content.(resource.ChoiceContent)
	if !ok {
		return nil
	}
	var out []resource.ChoiceOption
	for _, opt := range choice.Options {
		if opt.Condition == "" || e.EvaluateCondition(sess, opt.Condition) {
			out = append(out, opt)
		}
	}
	return out
}

// ContinueDialogue follows the current node's first connection.
func (e *Engine) ContinueDialogue(ctx context.Context, sess *Session) (*resource.StoryNode, error) {
	node, err := sess.CurrentNode()
	if err != nil {
		return nil, err
	}
	if len(node.Connections) == 0 {
		return nil, fmt.Errorf("node %q: %w", node.ID, ErrNoNextNode)
	}
	return e.NavigateToNode(ctx, sess, node.Connections[0])
}
