package brain

import (
	"context"
	"strings"
	"time"

	"github.com/normanking/enola/internal/logging"
	"github.com/normanking/enola/internal/tools"
)

// Model is the language-model client. Complete returns the single
// assistant turn the model synthesized for the given log, including any
// tool calls it wants executed.
type Model interface {
	Complete(ctx context.Context, turns []Turn, specs []*tools.Spec) (Turn, error)
}

// Fixed replies. Tool and model errors never escape as errors; the
// caller always gets a normal reply string.
const (
	ReplyEmpty  = "Je n'ai rien entendu."
	ReplyReset  = "Mémoire effacée."
	ReplyError  = "Erreur technique."
	ReplyFiller = "Ok."
)

// resetWords clear the conversation without touching the model.
var resetWords = map[string]bool{"reset": true, "clear": true, "oubli": true}

// DefaultMaxToolRounds bounds the model's tool-use loop per turn.
const DefaultMaxToolRounds = 10

// Orchestrator drives one conversation turn end to end: mode selection,
// memory update, model invocation, tool dispatch and reply derivation.
type Orchestrator struct {
	model      Model
	registry   *tools.Registry
	classifier *Classifier
	convs      *Conversations
	logger     *logging.Logger

	maxTurns      int
	maxToolRounds int
}

// Config wires an Orchestrator.
type Config struct {
	Model         Model
	Registry      *tools.Registry
	Logger        *logging.Logger
	MaxTurns      int
	MaxToolRounds int
}

// New creates the orchestrator and its mode classifier. The home mode
// owns every registered tool that is not claimed by the anime subset.
func New(cfg Config) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	return &Orchestrator{
		model:         cfg.Model,
		registry:      cfg.Registry,
		classifier:    NewClassifier(cfg.Registry.NamesExcept(AnimeTools)),
		convs:         NewConversations(),
		logger:        cfg.Logger,
		maxTurns:      cfg.MaxTurns,
		maxToolRounds: cfg.MaxToolRounds,
	}
}

// Conversations exposes the keyed store, for adapters that need to
// inspect or reset state directly.
func (o *Orchestrator) Conversations() *Conversations {
	return o.convs
}

// Process runs one turn for the given conversation identity and returns
// the user-facing reply. Turns for the same identity serialize on the
// conversation lock; a turn either completes or its mutations are
// rolled back.
func (o *Orchestrator) Process(ctx context.Context, convID, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ReplyEmpty
	}
	if resetWords[strings.ToLower(text)] {
		o.convs.Reset(convID)
		o.logger.Info("conversation reset", "conversation", convID)
		return ReplyReset
	}

	var reply string
	o.convs.WithLock(convID, func(h History) History {
		backup := h.Clone()
		mode := o.classifier.Classify(text, h)
		o.logger.Debug("mode selected", "conversation", convID, "mode", mode.ID)

		h = h.EnsureSystemTurn(mode.InstructionNow(time.Now()))
		h = h.Append(UserTurn(text))
		h = h.Truncate(o.maxTurns)

		updated, out, err := o.step(ctx, h, mode)
		if err != nil {
			o.logger.Error("model invocation failed", "conversation", convID, "error", err)
			reply = ReplyError
			return backup
		}
		reply = out
		return updated
	})
	return reply
}

// step runs the model/tool loop for one turn and derives the reply.
func (o *Orchestrator) step(ctx context.Context, h History, mode Mode) (History, string, error) {
	specs := o.registry.Specs(mode.Tools)

	for round := 0; round < o.maxToolRounds; round++ {
		turn, err := o.model.Complete(ctx, h, specs)
		if err != nil {
			return h, "", err
		}
		h = h.Append(turn)

		if len(turn.ToolCalls) == 0 {
			break
		}
		for _, call := range turn.ToolCalls {
			out := o.registry.Dispatch(ctx, tools.Call{ID: call.ID, Name: call.Name, Args: call.Args})
			o.logger.Debug("tool executed", "tool", call.Name, "call_id", call.ID)
			tt, terr := ToolTurn(call.ID, out)
			if terr != nil {
				continue
			}
			h = h.Append(tt)
		}
	}
	// Past the round cap the reply is derived from whatever the turn
	// produced so far.

	return h, deriveReply(h.Tail(), mode), nil
}

// deriveReply folds the turn's new activity into one reply. In
// tool-output-wins modes the raw tool text is the reply; the model's
// second-pass narrative is discarded so factual device state is never
// paraphrased.
func deriveReply(tail History, mode Mode) string {
	var toolOut []string
	for _, t := range tail {
		if t.Role == RoleTool {
			if c := strings.TrimSpace(t.Content); c != "" {
				toolOut = append(toolOut, c)
			}
		}
	}

	if mode.ToolOutputWins && len(toolOut) > 0 {
		return strings.Join(toolOut, "\n")
	}
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i].Role == RoleAssistant {
			if c := strings.TrimSpace(tail[i].Content); c != "" {
				return c
			}
		}
	}
	if len(toolOut) > 0 {
		return strings.Join(toolOut, "\n")
	}
	return ReplyFiller
}
