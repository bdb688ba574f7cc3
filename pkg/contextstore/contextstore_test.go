package contextstore

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendExchangeCreatesSessionLazily(t *testing.T) {
	st := New(10, 1000)
	require.NoError(t, st.AppendExchange("alice", "hi", "hello", nil))
	stats := st.Stats("alice")
	assert.Equal(t, 1, stats.ExchangeCount)
}

func TestAppendExchangeRejectsEmptyPrincipal(t *testing.T) {
	st := New(10, 1000)
	err := st.AppendExchange("", "hi", "hello", nil)
	assert.Error(t, err)
}

func TestHistoryCapEvictsOldest(t *testing.T) {
	st := New(3, 100000)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.AppendExchange("bob", fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i), nil))
	}
	stats := st.Stats("bob")
	assert.Equal(t, 3, stats.ExchangeCount)

	msgs := st.FormatHistoryForPrompt("bob", 10)
	require.Len(t, msgs, 6)
	assert.Equal(t, "u2", msgs[0].Content)
	assert.Equal(t, "u4", msgs[len(msgs)-2].Content)
}

func TestFormatHistoryForPromptRespectsMaxExchanges(t *testing.T) {
	st := New(10, 100000)
	for i := 0; i < 5; i++ {
		require.NoError(t, st.AppendExchange("carol", fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i), nil))
	}
	msgs := st.FormatHistoryForPrompt("carol", 2)
	assert.Len(t, msgs, 4)
	assert.Equal(t, "u3", msgs[0].Content)
}

func TestFormatHistoryForPromptRespectsTokenBudget(t *testing.T) {
	st := New(50, 1) // budget so tight only the newest exchange is kept
	require.NoError(t, st.AppendExchange("dave", "first message here", "first reply here", nil))
	require.NoError(t, st.AppendExchange("dave", "second message here", "second reply here", nil))

	msgs := st.FormatHistoryForPrompt("dave", 50)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "second message here", msgs[0].Content)
}

func TestScratchpadVariables(t *testing.T) {
	st := New(10, 1000)
	st.SetVariable("erin", "favorite_color", "blue")
	v, ok := st.GetVariable("erin", "favorite_color")
	require.True(t, ok)
	assert.Equal(t, "blue", v)

	_, ok = st.GetVariable("erin", "missing")
	assert.False(t, ok)
}

func TestClearResetsHistoryAndScratchpad(t *testing.T) {
	st := New(10, 1000)
	require.NoError(t, st.AppendExchange("frank", "hi", "hello", nil))
	st.SetVariable("frank", "k", "v")

	st.Clear("frank")

	assert.Equal(t, 0, st.Stats("frank").ExchangeCount)
	_, ok := st.GetVariable("frank", "k")
	assert.False(t, ok)
}
