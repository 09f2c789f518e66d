package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssignsUniqueIDs(t *testing.T) {
	reg := New()
	a := reg.Create()
	b := reg.Create()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestGetReturnsRegisteredJob(t *testing.T) {
	reg := New()
	created := reg.Create()

	got, ok := reg.Get(created.ID())
	require.True(t, ok)
	assert.Same(t, created, got)

	_, ok = reg.Get("no-such-job")
	assert.False(t, ok)
}

func TestListNewestFirst(t *testing.T) {
	reg := New()
	first := reg.Create()
	time.Sleep(2 * time.Millisecond)
	second := reg.Create()
	time.Sleep(2 * time.Millisecond)
	third := reg.Create()

	jobs := reg.List()
	require.Len(t, jobs, 3)
	assert.Equal(t, third.ID(), jobs[0].ID())
	assert.Equal(t, second.ID(), jobs[1].ID())
	assert.Equal(t, first.ID(), jobs[2].ID())
}
