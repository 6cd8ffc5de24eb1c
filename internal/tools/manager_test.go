package tools

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAction counts invocations and returns a canned result.
type stubAction struct {
	name   string
	output string
	err    error
	panics bool
	wait   bool
	calls  atomic.Int32
}

func (s *stubAction) Name() string { return s.name }

func (s *stubAction) Execute(ctx context.Context, _ Args) (string, error) {
	s.calls.Add(1)
	if s.panics {
		panic("boom")
	}
	if s.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.output, s.err
}

func stubActionsFor(c *Catalog) map[string]*stubAction {
	stubs := make(map[string]*stubAction)
	for _, name := range c.Names() {
		stubs[name] = &stubAction{name: name, output: name + " ok"}
	}
	return stubs
}

func asActions(stubs map[string]*stubAction) []Action {
	out := make([]Action, 0, len(stubs))
	for _, s := range stubs {
		out = append(out, s)
	}
	return out
}

func TestNewExecutor_RequiresOneActionPerTool(t *testing.T) {
	c := DefaultCatalog()

	stubs := stubActionsFor(c)
	delete(stubs, FileManagementToolName)
	_, err := NewExecutor(c, asActions(stubs))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no action")

	stubs = stubActionsFor(c)
	actions := append(asActions(stubs), &stubAction{name: "SendEmailTool"})
	_, err = NewExecutor(c, actions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")

	stubs = stubActionsFor(c)
	actions = append(asActions(stubs), &stubAction{name: APICallToolName})
	_, err = NewExecutor(c, actions)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than once")
}

func TestExecutor_Execute_Success(t *testing.T) {
	c := DefaultCatalog()
	stubs := stubActionsFor(c)
	e, err := NewExecutor(c, asActions(stubs))
	require.NoError(t, err)

	res := e.Execute(context.Background(), DataExtractionToolName, Args{"data": "x", "pattern": "x"})

	assert.True(t, res.Success)
	assert.Equal(t, "DataExtractionTool ok", res.Output)
	assert.Empty(t, res.ErrorKind)
	assert.EqualValues(t, 1, stubs[DataExtractionToolName].calls.Load())
	for name, s := range stubs {
		if name != DataExtractionToolName {
			assert.Zero(t, s.calls.Load(), name)
		}
	}
}

func TestExecutor_Execute_UnknownTool(t *testing.T) {
	c := DefaultCatalog()
	e, err := NewExecutor(c, asActions(stubActionsFor(c)))
	require.NoError(t, err)

	res := e.Execute(context.Background(), "SendEmailTool", Args{})

	assert.False(t, res.Success)
	assert.Equal(t, KindUnknownTool, res.ErrorKind)
	assert.Equal(t, "Error: Unknown tool 'SendEmailTool'", res.Output)
}

func TestExecutor_Execute_ActionError(t *testing.T) {
	c := DefaultCatalog()
	stubs := stubActionsFor(c)
	stubs[APICallToolName].err = errors.New("connection refused")
	e, err := NewExecutor(c, asActions(stubs))
	require.NoError(t, err)

	res := e.Execute(context.Background(), APICallToolName, Args{})

	assert.False(t, res.Success)
	assert.Equal(t, KindActionFault, res.ErrorKind)
	assert.Contains(t, res.Output, "connection refused")
}

func TestExecutor_Execute_PanicBecomesFault(t *testing.T) {
	c := DefaultCatalog()
	stubs := stubActionsFor(c)
	stubs[CodeExecutionToolName].panics = true
	e, err := NewExecutor(c, asActions(stubs))
	require.NoError(t, err)

	var res ExecutionResult
	assert.NotPanics(t, func() {
		res = e.Execute(context.Background(), CodeExecutionToolName, Args{})
	})
	assert.False(t, res.Success)
	assert.Equal(t, KindActionFault, res.ErrorKind)
	assert.Contains(t, res.Output, "boom")
	assert.EqualValues(t, 1, stubs[CodeExecutionToolName].calls.Load())
}

func TestExecutor_Execute_ActionTimeout(t *testing.T) {
	c := DefaultCatalog()
	stubs := stubActionsFor(c)
	stubs[DatabaseQueryToolName].wait = true
	e, err := NewExecutor(c, asActions(stubs), WithActionTimeout(20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	res := e.Execute(context.Background(), DatabaseQueryToolName, Args{})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, KindActionFault, res.ErrorKind)
	assert.Contains(t, res.Output, context.DeadlineExceeded.Error())
}
