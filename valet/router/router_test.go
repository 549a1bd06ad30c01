package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valet-assistant/valet-core/valet/audit"
	"github.com/valet-assistant/valet-core/valet/intent"
	"github.com/valet-assistant/valet-core/valet/pending"
	"github.com/valet-assistant/valet-core/valet/policy"
	"github.com/valet-assistant/valet-core/valet/profile"
	"github.com/valet-assistant/valet-core/valet/provider"
	"github.com/valet-assistant/valet-core/valet/ratelimit"
	"github.com/valet-assistant/valet-core/valet/session"
	"github.com/valet-assistant/valet-core/valet/store"
	"github.com/valet-assistant/valet-core/valet/testutil"
)

// =============================================================================
// Test harness
// =============================================================================

type env struct {
	router   *Router
	invoker  *testutil.MockInvoker
	sink     *audit.MemorySink
	kv       *testutil.FailingStore
	pendings *pending.Store
	sessions *session.Store
	fixture  *provider.Fixture
}

// newEnv wires a router against in-memory collaborators. An empty rules
// string runs fail-closed.
func newEnv(t *testing.T, rulesYAML string) *env {
	t.Helper()

	var rules *policy.RuleSet
	if rulesYAML != "" {
		var err error
		rules, err = policy.ParseRules([]byte(rulesYAML))
		require.NoError(t, err)
	}

	fixture := provider.NewFixture()
	kv := testutil.NewFailingStore(store.NewMemory())
	sink := audit.NewMemorySink()
	pendings := pending.NewStore(kv, 15*time.Minute, nil)
	sessions := session.NewStore(kv, session.DefaultTTL)
	invoker := testutil.NewMockInvoker()

	e := &env{
		invoker:  invoker,
		sink:     sink,
		kv:       kv,
		pendings: pendings,
		sessions: sessions,
		fixture:  fixture,
	}
	e.router = New(DefaultConfig(), Deps{
		Profiles: profile.NewRegistry(),
		Gate:     policy.NewGate(rules, provider.NewFactsAdapter(fixture), sink, nil),
		Pendings: pendings,
		Sessions: sessions,
		Store:    kv,
		Invoker:  invoker,
		Reader:   fixture,
		Sink:     sink,
	})
	return e
}

func submit(t *testing.T, e *env, text string) *Response {
	t.Helper()
	resp, err := e.router.Submit(context.Background(), Request{
		Text:      text,
		ActorID:   "alice",
		SessionID: "sess-1",
	})
	require.NoError(t, err)
	return resp
}

const allowReviewRule = `
rules:
  - actor: "*"
    action: pr.request_review
    target: "*"
    effect: allow
`

const denyReviewRule = `
rules:
  - actor: "*"
    action: pr.request_review
    target: "*"
    effect: deny
`

// =============================================================================
// Reads and system intents
// =============================================================================

func TestSubmit_ParseFailure(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "do the thing with the stuff")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.SpokenText, "didn't catch that")
	assert.Nil(t, resp.Intent)

	count, err := e.pendings.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, e.sink.Entries())
}

func TestSubmit_InboxList(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "list my inbox")

	assert.Equal(t, StatusOK, resp.Status)
	require.NotNil(t, resp.Intent)
	assert.Equal(t, intent.InboxList, resp.Intent.Name)
	assert.Contains(t, resp.SpokenText, "3 items")
	assert.Len(t, resp.Cards, 3)
}

func TestSubmit_SummarizeUnknownPR(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "summarize pr 12345")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.SpokenText, "couldn't find")
}

// The same question under a terse profile and a verbose one must come from
// the same data but fit each profile's budget.
func TestSubmit_SummarizeRespectsVerbosity(t *testing.T) {
	e := newEnv(t, "")
	ctx := context.Background()

	terse, err := e.router.Submit(ctx, Request{
		Text: "summarize pr 42", ActorID: "alice", SessionID: "s1", Profile: "workout",
	})
	require.NoError(t, err)
	verbose, err := e.router.Submit(ctx, Request{
		Text: "summarize pr 42", ActorID: "alice", SessionID: "s2", Profile: "relaxed",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, terse.Status)
	assert.Equal(t, StatusOK, verbose.Status)
	assert.LessOrEqual(t, profile.SentenceCount(terse.SpokenText), 2)
	assert.Greater(t, len(verbose.SpokenText), len(terse.SpokenText))
	// Strict privacy strips the excerpt line from the card.
	require.Len(t, terse.Cards, 1)
	require.Len(t, verbose.Cards, 1)
	assert.Less(t, len(terse.Cards[0].Lines), len(verbose.Cards[0].Lines))
}

func TestSubmit_DebugFieldOnlyInDebugPrivacy(t *testing.T) {
	profiles, err := profile.ParseCatalog([]byte(`
profiles:
  - name: desk
    max_sentences: 8
    max_words: 200
    privacy: debug
`))
	require.NoError(t, err)

	e := newEnv(t, "")
	e.router.profiles = profiles
	ctx := context.Background()

	plain, err := e.router.Submit(ctx, Request{Text: "list my inbox", ActorID: "alice", SessionID: "s1"})
	require.NoError(t, err)
	assert.Nil(t, plain.Debug)

	debug, err := e.router.Submit(ctx, Request{Text: "list my inbox", ActorID: "alice", SessionID: "s1", Profile: "desk"})
	require.NoError(t, err)
	assert.NotNil(t, debug.Debug)
}

func TestSubmit_RepeatOnFreshSession(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "repeat")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.SpokenText, "nothing to repeat")
}

func TestSubmit_RepeatReplaysLastResponse(t *testing.T) {
	e := newEnv(t, "")

	first := submit(t, e, "list my inbox")
	repeat := submit(t, e, "say that again")

	assert.Equal(t, StatusOK, repeat.Status)
	assert.Equal(t, first.SpokenText, repeat.SpokenText)
}

func TestSubmit_RepeatDoesNotReplayRefusals(t *testing.T) {
	e := newEnv(t, denyReviewRule)

	submit(t, e, "list my inbox")
	denied := submit(t, e, "request review from bob on pr 7")
	require.Equal(t, StatusError, denied.Status)

	repeat := submit(t, e, "repeat")
	assert.Contains(t, repeat.SpokenText, "3 items")
}

func TestSubmit_Help(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "what can you do")

	assert.Equal(t, StatusOK, resp.Status)
	require.Len(t, resp.Cards, 1)
	assert.NotEmpty(t, resp.Cards[0].Lines)
}

func TestSubmit_AgentStatusEmpty(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "agent status")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.SpokenText, "no active tasks")
}

// =============================================================================
// Policy outcomes
// =============================================================================

// A denial must leave no pending action behind and write exactly one
// denied audit entry.
func TestSubmit_DenyStagesNothing(t *testing.T) {
	e := newEnv(t, denyReviewRule)

	resp := submit(t, e, "request review from bob on org/repo#7")

	assert.Equal(t, StatusError, resp.Status)
	assert.Nil(t, resp.Pending)
	assert.Contains(t, resp.SpokenText, "not performed")

	count, err := e.pendings.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, e.sink.CountByOutcome(audit.OutcomeDenied))
	assert.Zero(t, e.invoker.CallCount)
}

// No rule for an irreversible action fails closed to DENY.
func TestSubmit_IrreversibleDeniedByDefault(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "merge pr 42")

	assert.Equal(t, StatusError, resp.Status)
	assert.Zero(t, e.invoker.CallCount)
	assert.Equal(t, 1, e.sink.CountByOutcome(audit.OutcomeDenied))
}

// No rule for a reversible side effect falls back to confirmation.
func TestSubmit_DefaultRequiresConfirmation(t *testing.T) {
	e := newEnv(t, "")

	resp := submit(t, e, "request review from bob on pr 7")

	assert.Equal(t, StatusNeedsConfirmation, resp.Status)
	require.NotNil(t, resp.Pending)
	assert.NotEmpty(t, resp.Pending.Token)
	assert.Contains(t, resp.SpokenText, "Say yes to confirm")
	assert.Zero(t, e.invoker.CallCount)
}

func TestSubmit_AllowExecutesImmediately(t *testing.T) {
	e := newEnv(t, allowReviewRule)

	resp := submit(t, e, "request review from bob on pr 7")

	assert.Equal(t, StatusOK, resp.Status)
	assert.Contains(t, resp.SpokenText, "bob")
	assert.Equal(t, 1, e.invoker.CallCount)
	assert.Equal(t, 1, e.sink.CountByOutcome(audit.OutcomeExecuted))

	calls := e.invoker.CallsFor("pr.request_review")
	require.Len(t, calls, 1)
	assert.Equal(t, "org/repo#7", calls[0].Payload["target"])
	assert.Equal(t, "bob", calls[0].Payload["reviewer"])
}

// A strict-confirmation profile stages even under an explicit ALLOW.
func TestSubmit_StrictProfileOverridesAllow(t *testing.T) {
	e := newEnv(t, allowReviewRule)

	resp, err := e.router.Submit(context.Background(), Request{
		Text: "request review from bob on pr 7", ActorID: "alice", SessionID: "s1", Profile: "workout",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNeedsConfirmation, resp.Status)
	assert.Zero(t, e.invoker.CallCount)
}

// An ALLOW rule with unmet conditions denies rather than widening.
func TestSubmit_UnmetConditionDenies(t *testing.T) {
	e := newEnv(t, `
rules:
  - actor: "*"
    action: pr.request_review
    target: "*"
    effect: allow
    conditions:
      - type: checks_green
`)

	resp := submit(t, e, "request review from bob on pr 99")

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.SpokenText, "checks")
	assert.Zero(t, e.invoker.CallCount)
}

func TestSubmit_ExecutorFailureIsNotRetried(t *testing.T) {
	e := newEnv(t, allowReviewRule)
	e.invoker.Error = assert.AnError

	resp := submit(t, e, "request review from bob on pr 7")

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.SpokenText, "Nothing was changed")
	assert.Equal(t, 1, e.invoker.CallCount)
	assert.Equal(t, 1, e.sink.CountByOutcome(audit.OutcomeFailed))
}

// =============================================================================
// Infrastructure failures and limits
// =============================================================================

// When the store is down, staging must fail the request rather than
// proceed as if confirmed.
func TestSubmit_StoreUnavailableFailsClosed(t *testing.T) {
	e := newEnv(t, "")
	e.kv.Fail()

	_, err := e.router.Submit(context.Background(), Request{
		Text: "request review from bob on pr 7", ActorID: "alice", SessionID: "s1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.Zero(t, e.invoker.CallCount)
}

func TestSubmit_RateLimited(t *testing.T) {
	e := newEnv(t, "")
	e.router.limiter = ratelimit.NewLimiter(&ratelimit.Config{
		RequestsPerMinute: 2,
		RequestsPerHour:   100,
	})

	submit(t, e, "list my inbox")
	submit(t, e, "list my inbox")
	resp := submit(t, e, "list my inbox")

	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.SpokenText, "too quickly")
}
