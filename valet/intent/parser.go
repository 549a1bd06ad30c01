package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Matcher
// =============================================================================

// extractFunc turns the submatches of a matched pattern into entities.
// Returning false fails the whole match: an out-of-vocabulary entity
// (e.g. a non-numeric PR number) must never produce a partial intent.
type extractFunc func(groups []string) (map[string]any, bool)

// matcher is one entry in the ordered grammar.
type matcher struct {
	name       Name
	confidence float64
	pattern    *regexp.Regexp
	extract    extractFunc
}

// noEntities is the extractor for patterns that carry no slots.
func noEntities([]string) (map[string]any, bool) {
	return nil, true
}

// =============================================================================
// Grammar
// =============================================================================

// target captures "org/repo#7" style references: owner/repo plus number.
const target = `(?:([a-z0-9][a-z0-9._-]*/[a-z0-9][a-z0-9._-]*)#(\d+))`

// matchers is the ordered grammar. First match wins; ties are broken by
// declaration order, so the more specific system intents come first.
var matchers = []matcher{
	// System intents. These must outrank everything else so that stray
	// words inside a confirmation phrase cannot re-trigger a command.
	{
		name:       SystemConfirm,
		confidence: 1.0,
		pattern:    regexp.MustCompile(`^(?:yes|confirm(?: it| that)?|go ahead|do it|approved?)$`),
		extract:    noEntities,
	},
	{
		name:       SystemCancel,
		confidence: 1.0,
		pattern:    regexp.MustCompile(`^(?:no|cancel(?: it| that)?|never ?mind|stop|abort|don'?t(?: do it)?)$`),
		extract:    noEntities,
	},
	{
		name:       SystemRepeat,
		confidence: 1.0,
		pattern:    regexp.MustCompile(`^(?:repeat(?: that)?|say (?:that|it) again|what did you (?:just )?say)$`),
		extract:    noEntities,
	},
	{
		name:       SystemHelp,
		confidence: 1.0,
		pattern:    regexp.MustCompile(`^(?:help|what can you do|list commands)$`),
		extract:    noEntities,
	},

	// Review requests before summaries: "request review ... on pr 7"
	// contains "pr 7" and must not fall through to pr.summarize.
	{
		name:       PRRequestReview,
		confidence: 0.95,
		pattern: regexp.MustCompile(
			`^(?:request(?: a)? review from|ask) ([a-z0-9][a-z0-9-]*) (?:on|to review) (?:` + target + `|(?:pr|pull request) #?(\d+))$`),
		extract: func(groups []string) (map[string]any, bool) {
			entities := map[string]any{"reviewer": groups[1]}
			return prTarget(entities, groups[2], groups[3], groups[4])
		},
	},
	{
		name:       PRMerge,
		confidence: 0.95,
		pattern:    regexp.MustCompile(`^merge (?:` + target + `|(?:pr|pull request) #?(\d+))$`),
		extract: func(groups []string) (map[string]any, bool) {
			return prTarget(map[string]any{}, groups[1], groups[2], groups[3])
		},
	},
	{
		name:       PRSummarize,
		confidence: 0.9,
		pattern: regexp.MustCompile(
			`^(?:summarize|summary of|give me a summary of|tell me about) (?:` + target + `|(?:pr|pull request) #?(\d+))$`),
		extract: func(groups []string) (map[string]any, bool) {
			return prTarget(map[string]any{}, groups[1], groups[2], groups[3])
		},
	},
	{
		name:       InboxList,
		confidence: 0.9,
		pattern: regexp.MustCompile(
			`^(?:list|check|read|triage|what'?s in) my (?:inbox|review queue|notifications)$|^inbox$`),
		extract: noEntities,
	},
	{
		name:       AgentStatus,
		confidence: 0.9,
		pattern: regexp.MustCompile(
			`^(?:agent status|status of (?:my )?(?:agent )?tasks|how(?:'s| is) the agent doing)$`),
		extract: noEntities,
	},
	{
		name:       AgentDelegate,
		confidence: 0.85,
		pattern: regexp.MustCompile(
			`^(?:delegate|have the agent|tell the agent to) (.{3,240})$`),
		extract: func(groups []string) (map[string]any, bool) {
			task := strings.TrimSpace(strings.TrimPrefix(groups[1], "to "))
			if task == "" {
				return nil, false
			}
			return map[string]any{"task": task}, true
		},
	},
}

// prTarget fills pr_number (and repo when present) from the capture groups
// of the shared target alternation. The PR number must be numeric; anything
// else fails the whole match.
func prTarget(entities map[string]any, repo, repoNum, bareNum string) (map[string]any, bool) {
	raw := bareNum
	if repo != "" {
		entities["repo"] = repo
		raw = repoNum
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return nil, false
	}
	entities["pr_number"] = n
	return entities, true
}

// =============================================================================
// Parser
// =============================================================================

// Normalize lowercases the transcript, trims it, collapses internal runs of
// whitespace, and strips trailing sentence punctuation. It never touches
// characters that carry meaning for targets ("/", "#", "-").
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimRight(text, ".!?")
	return strings.Join(strings.Fields(text), " ")
}

// Parse matches the normalized transcript against the ordered grammar.
// Returns the parsed intent and true, or a zero intent and false when no
// pattern matches. There is no partial match: a pattern whose entity
// extraction fails is skipped entirely.
func Parse(text string) (ParsedIntent, bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return ParsedIntent{}, false
	}

	for _, m := range matchers {
		groups := m.pattern.FindStringSubmatch(normalized)
		if groups == nil {
			continue
		}
		entities, ok := m.extract(groups)
		if !ok {
			continue
		}
		return ParsedIntent{
			Name:       m.name,
			Confidence: m.confidence,
			Entities:   entities,
		}, true
	}
	return ParsedIntent{}, false
}
