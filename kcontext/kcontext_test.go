package kcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_StartSuspendResumeSequence(t *testing.T) {
	var trace []string

	ctx := Create(func(self *Context, argv []interface{}) {
		trace = append(trace, "a")
		self.Suspend()
		trace = append(trace, "b")
		self.Suspend()
		trace = append(trace, "c")
	}, nil, func() { trace = append(trace, "cleanup") }, "actor-1")

	ctx.Start()
	assert.Equal(t, []string{"a"}, trace)
	assert.False(t, ctx.Dead())

	ctx.Resume()
	assert.Equal(t, []string{"a", "b"}, trace)

	ctx.Resume()
	assert.Equal(t, []string{"a", "b", "c", "cleanup"}, trace)
	assert.True(t, ctx.Dead())
}

func TestContext_KillSkipsEntry(t *testing.T) {
	ran := false
	cleaned := false
	ctx := Create(func(self *Context, argv []interface{}) { ran = true }, nil, func() { cleaned = true }, nil)
	ctx.Kill()
	ctx.Start()

	assert.False(t, ran, "a killed-before-start context never runs its entry")
	assert.True(t, cleaned)
	assert.True(t, ctx.Dead())
}

func TestContext_KillMidEntryRunsCleanupWithoutResumingEntry(t *testing.T) {
	var trace []string
	cleaned := false

	ctx := Create(func(self *Context, argv []interface{}) {
		trace = append(trace, "a")
		self.Suspend()
		trace = append(trace, "b") // must never run: killed before this Resume
	}, nil, func() { cleaned = true }, nil)

	ctx.Start()
	assert.Equal(t, []string{"a"}, trace)

	ctx.Kill()
	ctx.Resume()

	assert.Equal(t, []string{"a"}, trace, "entry_fn never resumes past its last Suspend once killed")
	assert.True(t, cleaned)
	assert.True(t, ctx.Dead())
}

func TestContext_OwnerIsPreserved(t *testing.T) {
	ctx := Create(func(self *Context, argv []interface{}) {}, nil, nil, "owner-handle")
	require.Equal(t, "owner-handle", ctx.Owner())
	ctx.Start()
}

func TestContext_PanicIsRecoveredAndReported(t *testing.T) {
	ctx := Create(func(self *Context, argv []interface{}) {
		panic("boom")
	}, nil, nil, nil)
	ctx.Start()
	assert.Equal(t, "boom", ctx.Panic())
	assert.True(t, ctx.Dead())
}
