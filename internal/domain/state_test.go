package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationState(t *testing.T) {
	s := NewConversationState("earthquakes near Tokyo last week")

	require.Len(t, s.Messages, 1)
	assert.Equal(t, RoleUser, s.Messages[0].Role)
	assert.Equal(t, "earthquakes near Tokyo last week", s.Messages[0].Content)
	assert.Zero(t, s.EvalLoopCount)
}

func TestApplyMessagesAppend(t *testing.T) {
	s := NewConversationState("hello")

	s.Apply(Patch{Messages: []Message{{Role: RoleAssistant, Content: "first"}}})
	s.Apply(Patch{Messages: []Message{{Role: RoleAssistant, Content: "second"}}})

	require.Len(t, s.Messages, 3)
	assert.Equal(t, "hello", s.Messages[0].Content)
	assert.Equal(t, "first", s.Messages[1].Content)
	assert.Equal(t, "second", s.Messages[2].Content)
}

func TestApplyAssumptionsAccumulate(t *testing.T) {
	s := NewConversationState("q")

	s.Apply(Patch{Assumptions: []string{"a", "b"}})
	// A retry re-reports b and adds c; b must not duplicate.
	s.Apply(Patch{Assumptions: []string{"b", "c"}})

	assert.Equal(t, []string{"a", "b", "c"}, s.Assumptions)
}

func TestApplyOverwriteSemantics(t *testing.T) {
	s := NewConversationState("q")

	s.Apply(Patch{
		Action:    Ptr(ActionNormaliseQuery),
		UserQuery: Ptr("earthquakes in Japan"),
		QueryType: Ptr(QueryTypeQuery),
	})
	s.Apply(Patch{QueryType: Ptr(QueryTypeCount)})

	assert.Equal(t, ActionNormaliseQuery, s.Action, "untouched fields survive")
	assert.Equal(t, QueryTypeCount, s.QueryType, "non-nil pointers overwrite")
}

func TestApplyEvalFeedbackClear(t *testing.T) {
	s := NewConversationState("q")

	s.Apply(Patch{EvalFeedback: Ptr("fix the geometry")})
	require.Equal(t, "fix the geometry", s.EvalFeedback)

	// Empty patch leaves it alone.
	s.Apply(Patch{})
	assert.Equal(t, "fix the geometry", s.EvalFeedback)

	// Pointer to empty string clears it.
	s.Apply(Patch{EvalFeedback: Ptr("")})
	assert.Empty(t, s.EvalFeedback)
}

func TestApplyEmptyPatchIsNoOp(t *testing.T) {
	s := NewConversationState("q")
	s.Apply(Patch{
		NormalisedQuery: &QueryModel{MinMagnitude: Ptr(6.0)},
		EvalLoopCount:   Ptr(1),
	})
	before := *s

	s.Apply(Patch{})

	assert.Equal(t, before.EvalLoopCount, s.EvalLoopCount)
	assert.Equal(t, before.NormalisedQuery, s.NormalisedQuery)
	assert.Len(t, s.Messages, 1)
}
