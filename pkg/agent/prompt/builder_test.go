package prompt

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"workflow-agent-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExcerptKeepsShortStrings(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 200))
}

func TestExcerptNeverSplitsRunes(t *testing.T) {
	// Place a multi-byte rune across the cut point for every offset it can
	// straddle.
	for pad := 197; pad < 200; pad++ {
		s := strings.Repeat("a", pad) + "héllo wörld 日本語"
		got := excerpt(s, 200)
		assert.True(t, utf8.ValidString(got), "pad %d produced invalid UTF-8", pad)
		assert.True(t, strings.HasSuffix(got, "..."))
		assert.LessOrEqual(t, len(got), 200+len("..."))
	}
}

func TestForRequirementsHistoryExcerptIsValidUTF8(t *testing.T) {
	now := time.Now()
	sess := &store.Session{ID: "s1", Stage: store.StageRequirements}
	sess.AppendMessage(store.RoleUser, strings.Repeat("a", 199)+"日本語テスト", now)
	sess.AppendMessage(store.RoleRequirements, "What should trigger it?", now)
	sess.AppendMessage(store.RoleUser, "a webhook", now)

	msgs := ForRequirements("analyst prompt, forced at exchange %d", 5, sess)
	require.Len(t, msgs, 2)
	assert.True(t, utf8.ValidString(msgs[1].Content))
	assert.Contains(t, msgs[1].Content, "...")
}
