package httpapi

import (
	"time"

	"github.com/valet-assistant/valet-core/valet/intent"
	"github.com/valet-assistant/valet-core/valet/pending"
	"github.com/valet-assistant/valet-core/valet/router"
)

// Request payloads

type SubmitCommandRequest struct {
	Text           string `json:"text"`
	ActorID        string `json:"actor_id"`
	SessionID      string `json:"session_id"`
	Profile        string `json:"profile,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type ConfirmActionRequest struct {
	Token          string `json:"token"`
	Decision       string `json:"decision"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Response payloads

type IntentResponse struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities,omitempty"`
}

type CardResponse struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Lines    []string `json:"lines,omitempty"`
	Link     string   `json:"link,omitempty"`
}

type PendingInfoResponse struct {
	Token     string    `json:"token"`
	Summary   string    `json:"summary"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CommandResponse struct {
	Status     string               `json:"status" enum:"ok,needs_confirmation,error"`
	Intent     *IntentResponse      `json:"intent,omitempty"`
	SpokenText string               `json:"spoken_text"`
	Cards      []CardResponse       `json:"cards,omitempty"`
	Pending    *PendingInfoResponse `json:"pending_action,omitempty"`
	Debug      map[string]any       `json:"debug,omitempty"`
}

type PendingActionResponse struct {
	Token      string    `json:"token"`
	ActionType string    `json:"action_type"`
	Target     string    `json:"target,omitempty"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toIntentResponse(parsed *intent.ParsedIntent) *IntentResponse {
	if parsed == nil {
		return nil
	}
	return &IntentResponse{
		Name:       string(parsed.Name),
		Confidence: parsed.Confidence,
		Entities:   parsed.Entities,
	}
}

func toCommandResponse(resp *router.Response) CommandResponse {
	out := CommandResponse{
		Status:     string(resp.Status),
		Intent:     toIntentResponse(resp.Intent),
		SpokenText: resp.SpokenText,
		Debug:      resp.Debug,
	}
	for _, card := range resp.Cards {
		out.Cards = append(out.Cards, CardResponse{
			Title:    card.Title,
			Subtitle: card.Subtitle,
			Lines:    card.Lines,
			Link:     card.Link,
		})
	}
	if resp.Pending != nil {
		out.Pending = &PendingInfoResponse{
			Token:     resp.Pending.Token,
			Summary:   resp.Pending.Summary,
			ExpiresAt: resp.Pending.ExpiresAt,
		}
	}
	return out
}

func toPendingActionResponse(action *pending.Action) PendingActionResponse {
	return PendingActionResponse{
		Token:      action.Token,
		ActionType: action.ActionType,
		Target:     action.Target,
		Summary:    action.Summary,
		CreatedAt:  action.CreatedAt,
		ExpiresAt:  action.ExpiresAt,
	}
}
