package provider

import (
	"context"
	"fmt"

	"github.com/valet-assistant/valet-core/valet/executor"
	"github.com/valet-assistant/valet-core/valet/intent"
	"github.com/valet-assistant/valet-core/valet/typeutil"
)

// RegisterExecutors wires the fixture's write operations into an executor
// registry under the side-effecting intent names.
func RegisterExecutors(registry *executor.Registry, f *Fixture) error {
	defs := []*executor.Definition{
		{
			ActionType:  string(intent.PRRequestReview),
			Description: "Request a review on a pull request",
			Handler: func(ctx context.Context, payload map[string]any) (map[string]any, error) {
				target := typeutil.SafeStringDefault(payload["target"], "")
				reviewer := typeutil.SafeStringDefault(payload["reviewer"], "")
				if target == "" || reviewer == "" {
					return nil, fmt.Errorf("request_review requires target and reviewer")
				}
				return f.RequestReview(ctx, target, reviewer)
			},
		},
		{
			ActionType:  string(intent.PRMerge),
			Description: "Merge a pull request",
			Handler: func(ctx context.Context, payload map[string]any) (map[string]any, error) {
				target := typeutil.SafeStringDefault(payload["target"], "")
				if target == "" {
					return nil, fmt.Errorf("merge requires target")
				}
				return f.Merge(ctx, target)
			},
		},
		{
			ActionType:  string(intent.AgentDelegate),
			Description: "Delegate a goal to an external agent",
			Handler: func(ctx context.Context, payload map[string]any) (map[string]any, error) {
				actor := typeutil.SafeStringDefault(payload["actor"], "")
				goal := typeutil.SafeStringDefault(payload["goal"], "")
				if goal == "" {
					return nil, fmt.Errorf("delegate requires goal")
				}
				task, err := f.Delegate(ctx, actor, goal)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"task_id": task.TaskID,
					"goal":    task.Goal,
					"state":   task.State,
				}, nil
			},
		},
	}

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}
