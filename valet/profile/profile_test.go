package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveKnown(t *testing.T) {
	r := NewRegistry()

	workout := r.Resolve("workout")
	assert.Equal(t, "workout", workout.Name)
	assert.Equal(t, 2, workout.MaxSentences)
	assert.True(t, workout.StrictConfirmation)
	assert.Equal(t, PrivacyStrict, workout.Privacy)

	relaxed := r.Resolve("relaxed")
	assert.Greater(t, relaxed.MaxWords, workout.MaxWords)
}

func TestRegistry_UnknownFallsBackToDefault(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"", "nonsense", "WORKOUT-typo"} {
		p := r.Resolve(name)
		assert.Equal(t, DefaultName, p.Name, "profile %q should fall back", name)
	}
	// Resolution is case-insensitive for known names.
	assert.Equal(t, "kitchen", r.Resolve(" Kitchen ").Name)
}

func TestParseCatalog_OverridesAndExtends(t *testing.T) {
	catalog := `
profiles:
  - name: workout
    max_sentences: 1
    max_words: 15
    strict_confirmation: true
    privacy: strict
  - name: driving
    max_sentences: 2
    max_words: 25
    strict_confirmation: true
    privacy: strict
`
	r, err := ParseCatalog([]byte(catalog))
	require.NoError(t, err)

	assert.Equal(t, 1, r.Resolve("workout").MaxSentences)
	assert.Equal(t, "driving", r.Resolve("driving").Name)
	// Built-ins not mentioned in the catalog survive.
	assert.Equal(t, "relaxed", r.Resolve("relaxed").Name)
}

func TestParseCatalog_Invalid(t *testing.T) {
	cases := map[string]string{
		"unnamed":       "profiles:\n  - max_sentences: 2\n    max_words: 10\n    privacy: strict\n",
		"zero budget":   "profiles:\n  - name: x\n    max_sentences: 0\n    max_words: 10\n    privacy: strict\n",
		"bad privacy":   "profiles:\n  - name: x\n    max_sentences: 2\n    max_words: 10\n    privacy: loud\n",
		"malformed yml": ":::not yaml",
	}
	for label, catalog := range cases {
		_, err := ParseCatalog([]byte(catalog))
		assert.Error(t, err, label)
	}
}

func TestPrivacyMode(t *testing.T) {
	assert.False(t, PrivacyStrict.AllowExcerpts())
	assert.False(t, PrivacyStrict.AllowDebug())
	assert.True(t, PrivacyBalanced.AllowExcerpts())
	assert.False(t, PrivacyBalanced.AllowDebug())
	assert.True(t, PrivacyDebug.AllowExcerpts())
	assert.True(t, PrivacyDebug.AllowDebug())
}

func TestShape_SentenceBudget(t *testing.T) {
	text := "First point. Second point. Third point. Fourth point."

	shaped := Shape(text, Profile{MaxSentences: 2, MaxWords: 100})
	assert.Equal(t, "First point. Second point.", shaped)
	assert.Equal(t, 2, SentenceCount(shaped))
}

func TestShape_WordBudget(t *testing.T) {
	text := "one two three four five six seven eight nine ten"

	shaped := Shape(text, Profile{MaxSentences: 10, MaxWords: 4})
	assert.Equal(t, 4, len(strings.Fields(shaped)))
	assert.True(t, strings.HasSuffix(shaped, "."))
}

func TestShape_WithinBudgetUnchanged(t *testing.T) {
	text := "Short answer."
	assert.Equal(t, text, Shape(text, Profile{MaxSentences: 4, MaxWords: 60}))
	assert.Equal(t, "", Shape("   ", Profile{MaxSentences: 4, MaxWords: 60}))
}

// The same summary under workout must come out no longer than under relaxed.
func TestShape_ProfilesOrderVerbosity(t *testing.T) {
	r := NewRegistry()
	summary := "PR 42 adds retry logic to the sync worker. " +
		"It touches twelve files. " +
		"CI is green and two reviewers approved. " +
		"The riskiest change is the backoff rewrite. " +
		"Merging is blocked on a changelog entry."

	workout := Shape(summary, r.Resolve("workout"))
	relaxed := Shape(summary, r.Resolve("relaxed"))

	assert.LessOrEqual(t, SentenceCount(workout), 2)
	assert.LessOrEqual(t, len(workout), len(relaxed))
	assert.Greater(t, SentenceCount(relaxed), SentenceCount(workout))
}
