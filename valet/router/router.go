// Package router combines parsed intent, profile, and policy decision
// into a response. It is the single place side effects are authorized,
// staged behind confirmation, and executed exactly once.
package router

import (
	"context"
	"fmt"
	"time"

	"github.com/valet-assistant/valet-core/eventbus"
	"github.com/valet-assistant/valet-core/valet/audit"
	"github.com/valet-assistant/valet-core/valet/executor"
	"github.com/valet-assistant/valet-core/valet/intent"
	"github.com/valet-assistant/valet-core/valet/observability"
	"github.com/valet-assistant/valet-core/valet/pending"
	"github.com/valet-assistant/valet-core/valet/policy"
	"github.com/valet-assistant/valet-core/valet/profile"
	"github.com/valet-assistant/valet-core/valet/provider"
	"github.com/valet-assistant/valet-core/valet/ratelimit"
	"github.com/valet-assistant/valet-core/valet/session"
	"github.com/valet-assistant/valet-core/valet/store"
	"github.com/valet-assistant/valet-core/valet/typeutil"
)

// Logger is the logging interface for the router.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// =============================================================================
// Request / Response
// =============================================================================

// Status is the outcome class of a command response.
type Status string

const (
	// StatusOK means the command was answered, inline or after execution.
	StatusOK Status = "ok"
	// StatusNeedsConfirmation means a pending action was staged.
	StatusNeedsConfirmation Status = "needs_confirmation"
	// StatusError means the command was refused or failed.
	StatusError Status = "error"
)

// Card is one structured summary item alongside the spoken text.
type Card struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Lines    []string `json:"lines,omitempty"`
	Link     string   `json:"link,omitempty"`
}

// PendingInfo describes a staged action awaiting confirmation.
type PendingInfo struct {
	Token     string    `json:"token"`
	Summary   string    `json:"summary"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Response is the transport-independent command response.
type Response struct {
	Status     Status               `json:"status"`
	Intent     *intent.ParsedIntent `json:"intent,omitempty"`
	SpokenText string               `json:"spoken_text"`
	Cards      []Card               `json:"cards,omitempty"`
	Pending    *PendingInfo         `json:"pending_action,omitempty"`
	// Debug is present only under privacy mode "debug".
	Debug map[string]any `json:"debug,omitempty"`
}

// Request is one submitted command.
type Request struct {
	Text           string
	ActorID        string
	SessionID      string
	Profile        string
	IdempotencyKey string
}

// ConfirmChoice is the user's answer to a pending action.
type ConfirmChoice string

const (
	ChoiceConfirm ConfirmChoice = "confirm"
	ChoiceCancel  ConfirmChoice = "cancel"
)

// =============================================================================
// Router
// =============================================================================

// Config holds router tunables.
type Config struct {
	// DefaultRepo resolves bare PR numbers ("summarize pr 42") to a
	// repository target.
	DefaultRepo string
	// IdempotencyTTL is how long a recorded result can be replayed.
	IdempotencyTTL time.Duration
	// RequireConfirmationForIrreversible stages irreversible actions for
	// confirmation even under an explicit ALLOW rule.
	RequireConfirmationForIrreversible bool
}

// DefaultConfig returns router defaults.
func DefaultConfig() Config {
	return Config{
		DefaultRepo:                        "org/repo",
		IdempotencyTTL:                     time.Hour,
		RequireConfirmationForIrreversible: true,
	}
}

// Deps are the router's collaborators. Bus, Limiter, and Logger are
// optional; everything else is required.
type Deps struct {
	Profiles *profile.Registry
	Gate     *policy.Gate
	Pendings *pending.Store
	Sessions *session.Store
	Store    store.KeyValue
	Invoker  executor.Invoker
	Reader   provider.ReadProvider
	Sink     audit.Sink
	Bus      eventbus.Bus
	Limiter  *ratelimit.Limiter
	Logger   Logger
}

// Router orchestrates command handling. Thread-safe; it holds no lock of
// its own and never holds store-level atomicity across an executor call.
type Router struct {
	cfg      Config
	profiles *profile.Registry
	gate     *policy.Gate
	pendings *pending.Store
	sessions *session.Store
	kv       store.KeyValue
	invoker  executor.Invoker
	reader   provider.ReadProvider
	sink     audit.Sink
	bus      eventbus.Bus
	limiter  *ratelimit.Limiter
	logger   Logger
}

// New creates a router.
func New(cfg Config, deps Deps) *Router {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = time.Hour
	}
	sink := deps.Sink
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Router{
		cfg:      cfg,
		profiles: deps.Profiles,
		gate:     deps.Gate,
		pendings: deps.Pendings,
		sessions: deps.Sessions,
		kv:       deps.Store,
		invoker:  deps.Invoker,
		reader:   deps.Reader,
		sink:     sink,
		bus:      deps.Bus,
		limiter:  deps.Limiter,
		logger:   deps.Logger,
	}
}

// =============================================================================
// Submit
// =============================================================================

// Submit handles one transcript. The returned error is reserved for
// infrastructure failures (store unreachable); everything the user can
// cause comes back inside the Response.
func (r *Router) Submit(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	if r.limiter != nil {
		if result := r.limiter.Check(req.ActorID); !result.Allowed {
			return &Response{
				Status:     StatusError,
				SpokenText: "You're sending commands too quickly. Wait a moment and try again.",
			}, nil
		}
	}

	prof := r.profiles.Resolve(req.Profile)
	r.publish(ctx, &eventbus.CommandReceived{
		UserID: req.ActorID, SessionID: req.SessionID, Profile: prof.Name, Text: req.Text,
	})

	parsed, ok := intent.Parse(req.Text)
	if !ok {
		resp := &Response{
			Status:     StatusOK,
			SpokenText: "Sorry, I didn't catch that. Try rephrasing, for example: summarize PR 42.",
		}
		r.finish(ctx, req, "none", resp, started)
		return resp, nil
	}

	resp, err := r.dispatch(ctx, req, prof, parsed)
	if err != nil {
		return nil, err
	}

	resp.Intent = &parsed
	resp.SpokenText = profile.Shape(resp.SpokenText, prof)
	if prof.Privacy.AllowDebug() {
		resp.Debug = map[string]any{
			"profile":  prof.Name,
			"intent":   parsed,
			"actor_id": req.ActorID,
		}
	}

	// Repeat reads session state; everything else that answered or staged
	// updates it. Refusals and failures must not look like the last
	// successful command.
	if parsed.Name != intent.SystemRepeat && resp.Status != StatusError {
		if err := r.sessions.Save(ctx, session.State{
			SessionID:      req.SessionID,
			LastSpokenText: resp.SpokenText,
			LastIntent:     string(parsed.Name),
			LastResponse:   map[string]any{"status": string(resp.Status)},
		}); err != nil {
			return nil, err
		}
	}

	r.finish(ctx, req, string(parsed.Name), resp, started)
	return resp, nil
}

// dispatch routes a parsed intent to its handler.
func (r *Router) dispatch(ctx context.Context, req Request, prof profile.Profile, parsed intent.ParsedIntent) (*Response, error) {
	switch parsed.Name {
	case intent.SystemRepeat:
		return r.handleRepeat(ctx, req)
	case intent.SystemConfirm:
		return r.handleSpokenDecision(ctx, req, ChoiceConfirm)
	case intent.SystemCancel:
		return r.handleSpokenDecision(ctx, req, ChoiceCancel)
	case intent.SystemHelp:
		return r.handleHelp(), nil
	case intent.InboxList:
		return r.handleInbox(ctx, req)
	case intent.PRSummarize:
		return r.handleSummarize(ctx, req, prof, parsed)
	case intent.AgentStatus:
		return r.handleAgentStatus(ctx, req)
	default:
		return r.handleSideEffect(ctx, req, prof, parsed)
	}
}

// handleRepeat replays the session's last spoken response.
func (r *Router) handleRepeat(ctx context.Context, req Request) (*Response, error) {
	state, err := r.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if state == nil || state.LastSpokenText == "" {
		return &Response{
			Status:     StatusOK,
			SpokenText: "There's nothing to repeat yet.",
		}, nil
	}
	return &Response{
		Status:     StatusOK,
		SpokenText: state.LastSpokenText,
	}, nil
}

// handleSpokenDecision resolves a bare "yes"/"no" against the user's
// newest pending action.
func (r *Router) handleSpokenDecision(ctx context.Context, req Request, choice ConfirmChoice) (*Response, error) {
	actions, err := r.pendings.ListForUser(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return &Response{
			Status:     StatusOK,
			SpokenText: "There's nothing waiting for confirmation.",
		}, nil
	}

	newest := actions[0]
	for _, a := range actions[1:] {
		if a.CreatedAt.After(newest.CreatedAt) {
			newest = a
		}
	}
	return r.Confirm(ctx, newest.Token, choice, req.IdempotencyKey)
}

// handleHelp lists what the assistant can do.
func (r *Router) handleHelp() *Response {
	return &Response{
		Status: StatusOK,
		SpokenText: "You can ask me to list your inbox, summarize a PR, " +
			"request a review, merge a PR, or delegate work to the agent.",
		Cards: []Card{{
			Title: "Commands",
			Lines: []string{
				"list my inbox",
				"summarize pr 42",
				"request review from bob on pr 7",
				"merge pr 42",
				"delegate <task> to the agent",
				"repeat / yes / no",
			},
		}},
	}
}

// handleSideEffect runs the gate and either refuses, stages, or executes.
func (r *Router) handleSideEffect(ctx context.Context, req Request, prof profile.Profile, parsed intent.ParsedIntent) (*Response, error) {
	target := r.resolveTarget(parsed)
	payload, summary := r.actionPlan(req, parsed, target)

	decision := r.gate.Evaluate(ctx, policy.Request{
		Actor:          req.ActorID,
		ActionType:     string(parsed.Name),
		Target:         target,
		Irreversible:   parsed.Name.IsIrreversible(),
		IdempotencyKey: req.IdempotencyKey,
	})
	observability.RecordPolicyDecision(string(parsed.Name), string(decision.Effect))

	switch decision.Effect {
	case policy.Deny:
		r.publish(ctx, &eventbus.ActionDenied{
			UserID: req.ActorID, ActionType: string(parsed.Name), Target: target, Reason: decision.Reason,
		})
		return &Response{
			Status:     StatusError,
			SpokenText: refusalText(decision.Reason),
		}, nil

	case policy.Allow:
		// An ALLOW rule still defers to the profile's confirmation
		// strictness and the irreversible-action safeguard.
		if prof.StrictConfirmation || (r.cfg.RequireConfirmationForIrreversible && parsed.Name.IsIrreversible()) {
			return r.stage(ctx, req, parsed, target, payload, summary)
		}
		recordKey := ""
		if req.IdempotencyKey != "" {
			recordKey = submitIdemKey(req.ActorID, req.IdempotencyKey)
		}
		return r.executeOnce(ctx, executeParams{
			UserID:         req.ActorID,
			SessionID:      req.SessionID,
			ActionType:     string(parsed.Name),
			Target:         target,
			Payload:        payload,
			IdempotencyKey: req.IdempotencyKey,
			RecordKey:      recordKey,
		})

	default:
		return r.stage(ctx, req, parsed, target, payload, summary)
	}
}

// stage parks the side effect behind a one-time confirmation token.
func (r *Router) stage(ctx context.Context, req Request, parsed intent.ParsedIntent, target string, payload map[string]any, summary string) (*Response, error) {
	action, err := r.pendings.Create(ctx, pending.Action{
		UserID:         req.ActorID,
		SessionID:      req.SessionID,
		ActionType:     string(parsed.Name),
		Target:         target,
		Payload:        payload,
		Summary:        summary,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		// Creation under store failure must fail the request, never
		// proceed as if confirmed.
		return nil, err
	}

	observability.RecordPendingCreated(string(parsed.Name))
	r.publish(ctx, &eventbus.PendingActionStaged{
		UserID: req.ActorID, ActionType: string(parsed.Name), Target: target, Token: action.Token,
	})

	return &Response{
		Status:     StatusNeedsConfirmation,
		SpokenText: summary + ". Say yes to confirm, or no to cancel.",
		Pending: &PendingInfo{
			Token:     action.Token,
			Summary:   summary,
			ExpiresAt: action.ExpiresAt,
		},
	}, nil
}

// resolveTarget builds the "owner/repo#N" target from parsed entities,
// falling back to the configured default repository.
func (r *Router) resolveTarget(parsed intent.ParsedIntent) string {
	n := typeutil.SafeIntDefault(parsed.Entities["pr_number"], 0)
	if n == 0 {
		return ""
	}
	repo := typeutil.SafeStringDefault(parsed.Entities["repo"], r.cfg.DefaultRepo)
	return fmt.Sprintf("%s#%d", repo, n)
}

// actionPlan builds the executor payload and the human-readable summary
// shown before confirmation.
func (r *Router) actionPlan(req Request, parsed intent.ParsedIntent, target string) (map[string]any, string) {
	switch parsed.Name {
	case intent.PRRequestReview:
		reviewer := typeutil.SafeStringDefault(parsed.Entities["reviewer"], "")
		return map[string]any{
				"target":   target,
				"reviewer": reviewer,
			},
			fmt.Sprintf("Request a review from %s on %s", reviewer, target)
	case intent.PRMerge:
		return map[string]any{
				"target": target,
			},
			fmt.Sprintf("Merge %s", target)
	case intent.AgentDelegate:
		goal := typeutil.SafeStringDefault(parsed.Entities["task"], "")
		return map[string]any{
				"actor": req.ActorID,
				"goal":  goal,
			},
			fmt.Sprintf("Delegate to the agent: %s", goal)
	default:
		return map[string]any{}, string(parsed.Name)
	}
}

// =============================================================================
// Internal helpers
// =============================================================================

// publish sends an event when a bus is wired; the router works without one.
func (r *Router) publish(ctx context.Context, event eventbus.Message) {
	if r.bus != nil {
		_ = r.bus.Publish(ctx, event)
	}
}

// finish records per-command telemetry.
func (r *Router) finish(ctx context.Context, req Request, intentName string, resp *Response, started time.Time) {
	durationMS := int(time.Since(started).Milliseconds())
	observability.RecordCommand(intentName, string(resp.Status), durationMS)
	r.publish(ctx, &eventbus.CommandProcessed{
		UserID:     req.ActorID,
		SessionID:  req.SessionID,
		Intent:     intentName,
		Status:     string(resp.Status),
		DurationMS: durationMS,
	})
	if r.logger != nil {
		r.logger.Info("command_processed",
			"user_id", req.ActorID,
			"intent", intentName,
			"status", string(resp.Status),
			"duration_ms", durationMS,
		)
	}
}

// refusalText turns a gate reason into a user-safe refusal with a next step.
func refusalText(reason string) string {
	if reason == "" {
		reason = "policy does not allow it"
	}
	return fmt.Sprintf("I can't do that: %s. The action was not performed.", reason)
}
