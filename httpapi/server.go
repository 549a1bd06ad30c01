// Package httpapi binds the command router to HTTP. The router stays
// transport-agnostic; this layer only translates requests, responses,
// and the narrow set of infrastructure errors that map to 5xx.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/valet-assistant/valet-core/valet/pending"
	"github.com/valet-assistant/valet-core/valet/router"
	"github.com/valet-assistant/valet-core/valet/store"
)

// Logger is the logging interface for the HTTP layer.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config for the HTTP API handler.
type Config struct {
	Router   *router.Router
	Pendings *pending.Store
	BasePath string
	Logger   Logger
}

type apiErrorBody struct {
	Code    string `json:"code" example:"store_unavailable"`
	Message string `json:"message" example:"keyed store unavailable"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

var newErrorOnce sync.Once

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{status: status, Body: apiErrorBody{Code: code, Message: message}}
}

// New returns an HTTP handler exposing the Valet API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Router == nil {
		return nil, errors.New("httpapi: router is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	// huma.NewError is package-global state; install the envelope factory
	// exactly once so later constructions cannot swap it out from under
	// handlers already serving.
	newErrorOnce.Do(func() {
		huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
			return newAPIError(status, "", msg)
		}
	})

	mux := chi.NewRouter()
	hcfg := huma.DefaultConfig("Valet API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(mux, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(api)
	registerCommands(group, cfg)
	registerConfirmations(group, cfg)
	registerPending(group, cfg)

	return mux, nil
}

// handleError maps internal errors to the envelope. Only infrastructure
// failures surface as 5xx; everything the user can cause is already a
// 200 with a status field in the body.
func handleError(err error, logger Logger) huma.StatusError {
	if err == nil {
		return nil
	}
	if logger != nil {
		logger.Error("request_failed", "error", err.Error())
	}
	if errors.Is(err, store.ErrUnavailable) {
		return newAPIError(http.StatusServiceUnavailable, "store_unavailable", "the assistant's store is unavailable; try again shortly")
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "store_unavailable"
	default:
		return "internal_error"
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/healthz",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerCommands(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-command",
		Method:      http.MethodPost,
		Path:        "/commands",
		Summary:     "Submit a command transcript",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusServiceUnavailable,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body SubmitCommandRequest `json:"body"`
	}) (*struct {
		Body CommandResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Text) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required")
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required")
		}
		if input.Body.SessionID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "session_id is required")
		}

		resp, err := cfg.Router.Submit(ctx, router.Request{
			Text:           input.Body.Text,
			ActorID:        input.Body.ActorID,
			SessionID:      input.Body.SessionID,
			Profile:        input.Body.Profile,
			IdempotencyKey: input.Body.IdempotencyKey,
		})
		if err != nil {
			return nil, handleError(err, cfg.Logger)
		}
		return &struct {
			Body CommandResponse `json:"body"`
		}{Body: toCommandResponse(resp)}, nil
	})
}

func registerConfirmations(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "confirm-action",
		Method:      http.MethodPost,
		Path:        "/confirmations",
		Summary:     "Confirm or cancel a pending action",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusServiceUnavailable,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body ConfirmActionRequest `json:"body"`
	}) (*struct {
		Body CommandResponse `json:"body"`
	}, error) {
		if input.Body.Token == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "token is required")
		}
		choice := router.ConfirmChoice(input.Body.Decision)
		if choice != router.ChoiceConfirm && choice != router.ChoiceCancel {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "decision must be confirm or cancel")
		}

		resp, err := cfg.Router.Confirm(ctx, input.Body.Token, choice, input.Body.IdempotencyKey)
		if err != nil {
			return nil, handleError(err, cfg.Logger)
		}
		return &struct {
			Body CommandResponse `json:"body"`
		}{Body: toCommandResponse(resp)}, nil
	})
}

func registerPending(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pending",
		Method:      http.MethodGet,
		Path:        "/pending/{actor_id}",
		Summary:     "List outstanding confirmations for an actor",
		Errors: []int{
			http.StatusServiceUnavailable,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
	}) (*struct {
		Body struct {
			Pending []PendingActionResponse `json:"pending"`
		} `json:"body"`
	}, error) {
		actions, err := cfg.Pendings.ListForUser(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err, cfg.Logger)
		}
		sort.Slice(actions, func(i, j int) bool {
			return actions[i].CreatedAt.After(actions[j].CreatedAt)
		})

		out := &struct {
			Body struct {
				Pending []PendingActionResponse `json:"pending"`
			} `json:"body"`
		}{}
		out.Body.Pending = make([]PendingActionResponse, 0, len(actions))
		for _, action := range actions {
			out.Body.Pending = append(out.Body.Pending, toPendingActionResponse(action))
		}
		return out, nil
	})
}
