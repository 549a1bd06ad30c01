package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valet-assistant/valet-core/eventbus"
	"github.com/valet-assistant/valet-core/valet/audit"
	"github.com/valet-assistant/valet-core/valet/intent"
	"github.com/valet-assistant/valet-core/valet/observability"
	"github.com/valet-assistant/valet-core/valet/pending"
	"github.com/valet-assistant/valet-core/valet/session"
	"github.com/valet-assistant/valet-core/valet/typeutil"
)

const idemPrefix = "idem:"

// idempotencyRecord is what an idempotency key maps to: a placeholder
// while the executor runs, then the full response.
type idempotencyRecord struct {
	State    string    `json:"state"` // "in_flight", "done"
	Response *Response `json:"response,omitempty"`
}

// tokenInvalidText is the uniform message for expired, consumed, and
// never-issued tokens. One message for all three, so callers cannot
// probe which tokens ever existed.
const tokenInvalidText = "That confirmation is no longer valid. The action was not performed. Submit the command again if you still want it."

// =============================================================================
// Confirm
// =============================================================================

// Confirm resolves a pending action. Exactly one caller can win a token;
// a replay with the same idempotency key returns the recorded result
// instead of executing again.
func (r *Router) Confirm(ctx context.Context, token string, choice ConfirmChoice, idemKey string) (*Response, error) {
	if choice != ChoiceConfirm && choice != ChoiceCancel {
		return &Response{
			Status:     StatusError,
			SpokenText: "Say confirm or cancel.",
		}, nil
	}

	action, err := r.pendings.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, pending.ErrTokenInvalid) {
			// The token may be gone because this exact request already
			// ran: replay the recorded result if the caller proves it
			// with the same idempotency key.
			if idemKey != "" {
				if prior, perr := r.recordedResponse(ctx, confirmIdemKey(token, idemKey)); perr != nil {
					return nil, perr
				} else if prior != nil {
					return prior, nil
				}
			}
			return &Response{
				Status:     StatusError,
				SpokenText: tokenInvalidText,
			}, nil
		}
		return nil, err
	}

	if choice == ChoiceCancel {
		return r.cancel(ctx, token, idemKey, action)
	}

	observability.RecordPendingResolved("confirmed")

	recordKey := ""
	if idemKey != "" {
		recordKey = confirmIdemKey(token, idemKey)
	}
	resp, err := r.executeOnce(ctx, executeParams{
		UserID:         action.UserID,
		SessionID:      action.SessionID,
		ActionType:     action.ActionType,
		Target:         action.Target,
		Payload:        action.Payload,
		IdempotencyKey: idemKey,
		RecordKey:      recordKey,
	})
	if err != nil {
		return nil, err
	}

	if resp.Status == StatusOK && action.SessionID != "" {
		if err := r.sessions.Save(ctx, session.State{
			SessionID:      action.SessionID,
			LastSpokenText: resp.SpokenText,
			LastIntent:     action.ActionType,
			LastResponse:   map[string]any{"status": string(resp.Status)},
		}); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// cancel resolves a consumed pending action as user-cancelled.
func (r *Router) cancel(ctx context.Context, token, idemKey string, action *pending.Action) (*Response, error) {
	observability.RecordPendingResolved("cancelled")
	r.audit(ctx, audit.Entry{
		UserID:         action.UserID,
		ActionType:     action.ActionType,
		Target:         action.Target,
		Outcome:        audit.OutcomeDenied,
		Reason:         "user_cancelled",
		IdempotencyKey: action.IdempotencyKey,
	})
	r.publish(ctx, &eventbus.ActionCancelled{
		UserID: action.UserID, ActionType: action.ActionType, Token: token,
	})

	resp := &Response{
		Status:     StatusOK,
		SpokenText: "Cancelled. The action was not performed.",
	}
	if idemKey != "" {
		if err := r.recordResponse(ctx, confirmIdemKey(token, idemKey), resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// =============================================================================
// One-shot execution
// =============================================================================

type executeParams struct {
	UserID     string
	SessionID  string
	ActionType string
	Target     string
	Payload    map[string]any
	// IdempotencyKey is the caller-supplied key, carried into audit rows.
	IdempotencyKey string
	// RecordKey is the store key for the result record. For confirms it is
	// token-scoped; empty disables the guard.
	RecordKey string
}

// executeOnce invokes the executor behind an idempotency guard.
//
// When a key is supplied, "has this key already produced a result" and
// "record the in-flight placeholder" are a single atomic store operation,
// so concurrent retries cannot double-execute. No lock is held across the
// executor call itself.
func (r *Router) executeOnce(ctx context.Context, params executeParams) (*Response, error) {
	if params.RecordKey != "" {
		placeholder, _ := json.Marshal(idempotencyRecord{State: "in_flight"})
		won, err := r.kv.PutIfAbsent(ctx, idemPrefix+params.RecordKey, placeholder, r.cfg.IdempotencyTTL)
		if err != nil {
			return nil, err
		}
		if !won {
			prior, err := r.recordedResponse(ctx, params.RecordKey)
			if err != nil {
				return nil, err
			}
			if prior != nil {
				return prior, nil
			}
			// Placeholder present but no result: the first attempt is
			// still running.
			return &Response{
				Status:     StatusError,
				SpokenText: "That action is already being processed. It will not run twice.",
			}, nil
		}
	}

	started := time.Now()
	result, execErr := r.invoker.Execute(ctx, params.ActionType, params.Payload)
	durationMS := int(time.Since(started).Milliseconds())

	var resp *Response
	if execErr != nil {
		observability.RecordExecution(params.ActionType, "failed", durationMS)
		r.audit(ctx, audit.Entry{
			UserID:         params.UserID,
			ActionType:     params.ActionType,
			Target:         params.Target,
			Outcome:        audit.OutcomeFailed,
			Reason:         execErr.Error(),
			IdempotencyKey: params.IdempotencyKey,
		})
		if r.logger != nil {
			r.logger.Warn("action_failed",
				"action_type", params.ActionType,
				"target", params.Target,
				"error", execErr.Error(),
			)
		}
		// Never auto-retried: the caller decides, presenting the same
		// idempotency key so no duplicate effect can occur.
		resp = &Response{
			Status:     StatusError,
			SpokenText: fmt.Sprintf("The %s action failed. Nothing was changed on your behalf. Try again when ready.", params.ActionType),
		}
	} else {
		observability.RecordExecution(params.ActionType, "executed", durationMS)
		r.audit(ctx, audit.Entry{
			UserID:         params.UserID,
			ActionType:     params.ActionType,
			Target:         params.Target,
			Outcome:        audit.OutcomeExecuted,
			IdempotencyKey: params.IdempotencyKey,
		})
		resp = &Response{
			Status:     StatusOK,
			SpokenText: executedText(params, result),
		}
		if params.ActionType == string(intent.AgentDelegate) {
			r.publish(ctx, &eventbus.TaskDelegated{
				UserID: params.UserID,
				TaskID: typeutil.SafeStringDefault(result["task_id"], ""),
				Goal:   typeutil.SafeStringDefault(params.Payload["goal"], ""),
			})
		}
	}

	status := "executed"
	var errText *string
	if execErr != nil {
		status = "failed"
		msg := execErr.Error()
		errText = &msg
	}
	r.publish(ctx, &eventbus.ActionExecuted{
		UserID:     params.UserID,
		ActionType: params.ActionType,
		Target:     params.Target,
		Status:     status,
		DurationMS: durationMS,
		Error:      errText,
	})

	if params.RecordKey != "" {
		if err := r.recordResponse(ctx, params.RecordKey, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// executedText builds the success message for an executed action.
func executedText(params executeParams, result map[string]any) string {
	switch params.ActionType {
	case string(intent.PRRequestReview):
		reviewer := typeutil.SafeStringDefault(params.Payload["reviewer"], "the reviewer")
		return fmt.Sprintf("Done. Asked %s to review %s.", reviewer, params.Target)
	case string(intent.PRMerge):
		return fmt.Sprintf("Merged %s.", params.Target)
	case string(intent.AgentDelegate):
		taskID := typeutil.SafeStringDefault(result["task_id"], "")
		if taskID != "" {
			return fmt.Sprintf("Delegated to the agent. The task is queued as %s.", taskID)
		}
		return "Delegated to the agent."
	default:
		return fmt.Sprintf("Done: %s.", params.ActionType)
	}
}

// =============================================================================
// Idempotency records
// =============================================================================

// confirmIdemKey scopes an idempotency key to its token, per the
// confirm contract: the replayed pair is (token, idempotency_key).
func confirmIdemKey(token, idemKey string) string {
	return token + "/" + idemKey
}

// submitIdemKey scopes a submit-path idempotency key to its actor.
// Idempotency state is partitioned per user: two actors presenting the
// same key are two distinct requests, never a replay of each other.
func submitIdemKey(actorID, idemKey string) string {
	return actorID + "/" + idemKey
}

// recordedResponse returns the completed response recorded under an
// idempotency key, or nil when absent or still in flight.
func (r *Router) recordedResponse(ctx context.Context, idemKey string) (*Response, error) {
	data, ok, err := r.kv.Get(ctx, idemPrefix+idemKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	if rec.State != "done" || rec.Response == nil {
		return nil, nil
	}
	return rec.Response, nil
}

// recordResponse stores the completed response under an idempotency key.
func (r *Router) recordResponse(ctx context.Context, idemKey string, resp *Response) error {
	data, err := json.Marshal(idempotencyRecord{State: "done", Response: resp})
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	return r.kv.Put(ctx, idemPrefix+idemKey, data, r.cfg.IdempotencyTTL)
}

// audit writes one entry, logging rather than failing on sink errors:
// losing one audit row must not abort a user-visible action midway.
func (r *Router) audit(ctx context.Context, entry audit.Entry) {
	if err := r.sink.Record(ctx, entry); err != nil && r.logger != nil {
		r.logger.Error("audit_write_failed", "error", err.Error())
	}
}
