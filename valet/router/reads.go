package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/valet-assistant/valet-core/valet/intent"
	"github.com/valet-assistant/valet-core/valet/profile"
	"github.com/valet-assistant/valet-core/valet/provider"
)

// handleInbox answers inbox.list.
func (r *Router) handleInbox(ctx context.Context, req Request) (*Response, error) {
	items, err := r.reader.ListInbox(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return &Response{
			Status:     StatusOK,
			SpokenText: "Your inbox is empty.",
		}, nil
	}

	spoken := fmt.Sprintf("You have %d items. The newest: %s.", len(items), items[0].Title)
	cards := make([]Card, 0, len(items))
	for _, item := range items {
		cards = append(cards, Card{
			Title:    item.Title,
			Subtitle: item.Kind,
			Link:     item.Link,
		})
	}

	return &Response{
		Status:     StatusOK,
		SpokenText: spoken,
		Cards:      cards,
	}, nil
}

// handleSummarize answers pr.summarize.
func (r *Router) handleSummarize(ctx context.Context, req Request, prof profile.Profile, parsed intent.ParsedIntent) (*Response, error) {
	target := r.resolveTarget(parsed)
	if target == "" {
		return &Response{
			Status:     StatusOK,
			SpokenText: "Which PR? Try: summarize PR 42.",
		}, nil
	}

	summary, err := r.reader.Summarize(ctx, target, prof.Privacy)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return &Response{
				Status:     StatusOK,
				SpokenText: fmt.Sprintf("I couldn't find %s. Check the PR number and try again.", target),
			}, nil
		}
		return nil, err
	}

	spoken := summary.Overview
	if summary.Detail != "" {
		spoken += " " + summary.Detail
	}

	card := Card{
		Title:    fmt.Sprintf("%s: %s", summary.Target, summary.Title),
		Subtitle: fmt.Sprintf("%s by %s", summary.State, summary.Author),
		Lines: []string{
			fmt.Sprintf("checks green: %v", summary.ChecksGreen),
			fmt.Sprintf("approvals: %d", summary.Approvals),
		},
	}
	if summary.CodeExcerpt != "" {
		card.Lines = append(card.Lines, summary.CodeExcerpt)
	}

	return &Response{
		Status:     StatusOK,
		SpokenText: spoken,
		Cards:      []Card{card},
	}, nil
}

// handleAgentStatus answers agent.status.
func (r *Router) handleAgentStatus(ctx context.Context, req Request) (*Response, error) {
	tasks, err := r.reader.ActiveTasks(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}

	if len(tasks) == 0 {
		return &Response{
			Status:     StatusOK,
			SpokenText: "The agent has no active tasks.",
		}, nil
	}

	var parts []string
	cards := make([]Card, 0, len(tasks))
	for _, task := range tasks {
		parts = append(parts, fmt.Sprintf("%s (%s)", task.Goal, task.State))
		cards = append(cards, Card{
			Title:    task.Goal,
			Subtitle: task.State,
			Lines:    []string{task.Detail},
		})
	}

	return &Response{
		Status:     StatusOK,
		SpokenText: fmt.Sprintf("%d active tasks: %s.", len(tasks), strings.Join(parts, "; ")),
		Cards:      cards,
	}, nil
}
