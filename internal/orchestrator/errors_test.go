package orchestrator_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/compresr/journey-gateway/internal/orchestrator"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("bootstrap: %w", &orchestrator.Error{Kind: orchestrator.FetchFailure, Op: "fetch configuration web", Err: cause})

	assert.ErrorIs(t, err, orchestrator.ErrFetchFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, orchestrator.ErrCompileFailure)
	assert.Equal(t, orchestrator.FetchFailure, orchestrator.KindOf(err))
	assert.Equal(t, "bootstrap: fetch configuration web: connection refused", err.Error())
	assert.Equal(t, orchestrator.KindNone, orchestrator.KindOf(cause))
}

func TestKind_Fatal(t *testing.T) {
	for _, k := range []orchestrator.Kind{
		orchestrator.ConfigurationMissing, orchestrator.FetchFailure,
		orchestrator.CompileFailure, orchestrator.ExecutionFailure,
	} {
		assert.True(t, k.Fatal(), k.String())
	}
	assert.False(t, orchestrator.WidgetUnavailable.Fatal())
	assert.False(t, orchestrator.ValidationFailure.Fatal())
}

func TestNotificationFor(t *testing.T) {
	n := orchestrator.NotificationFor(&orchestrator.Error{Kind: orchestrator.CompileFailure, Op: "compile web", Err: errors.New("bad")})
	assert.Equal(t, orchestrator.SeverityError, n.Severity)
	assert.Equal(t, "Error building tracking script", n.Title)
	assert.Equal(t, "compile web: bad", n.Message)
	assert.Equal(t, "CompileFailure", n.Kind)

	n = orchestrator.NotificationFor(&orchestrator.Error{Kind: orchestrator.ValidationFailure, Err: errors.New("bad email")})
	assert.Equal(t, orchestrator.SeverityWarning, n.Severity)
	assert.Equal(t, "bad email", n.Message)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ResolvingIdentifier", orchestrator.ResolvingIdentifier.String())
	assert.Equal(t, "Unknown", orchestrator.State(42).String())
	assert.True(t, orchestrator.Ready.Terminal())
	assert.True(t, orchestrator.Failed.Terminal())
	assert.False(t, orchestrator.Executing.Terminal())
}
