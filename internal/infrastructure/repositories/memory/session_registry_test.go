package memory

import (
	"fmt"
	"sync"
	"testing"

	"livegate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRegistry_PublishExclusive(t *testing.T) {
	reg := NewSessionRegistry()

	sess, err := reg.RegisterPublish("alice-stream", nil, domain.ConnMeta{}, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPublish, sess.Role)
	assert.NotEmpty(t, sess.ID)

	_, err = reg.RegisterPublish("alice-stream", nil, domain.ConnMeta{}, "conn-2")
	assert.ErrorIs(t, err, domain.ErrPublishConflict)

	// the loser's connection owns nothing
	_, found := reg.FindByConnection("conn-2")
	assert.False(t, found)

	// a different key is unaffected
	_, err = reg.RegisterPublish("bob-stream", nil, domain.ConnMeta{}, "conn-3")
	require.NoError(t, err)
}

func TestSessionRegistry_ConcurrentPublishSingleWinner(t *testing.T) {
	reg := NewSessionRegistry()

	const attempts = 32
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			connID := domain.ConnectionID(fmt.Sprintf("conn-%d", n))
			if _, err := reg.RegisterPublish("alice-stream", nil, domain.ConnMeta{}, connID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Len(t, reg.PublishKeys(), 1)
}

func TestSessionRegistry_RemoveKeepsIndexesConsistent(t *testing.T) {
	reg := NewSessionRegistry()

	_, err := reg.RegisterPublish("alice-stream", nil, domain.ConnMeta{}, "pub-conn")
	require.NoError(t, err)
	reg.RegisterPlay("alice-stream", nil, domain.ConnMeta{}, "play-conn")

	sess, removed := reg.Remove("pub-conn")
	require.True(t, removed)
	assert.True(t, sess.IsPublish())

	_, found := reg.FindPublish("alice-stream")
	assert.False(t, found)
	_, found = reg.FindByConnection("pub-conn")
	assert.False(t, found)

	// the play session is untouched
	play, found := reg.FindByConnection("play-conn")
	require.True(t, found)
	assert.Equal(t, domain.SessionPlay, play.Role)

	// removal is idempotent
	_, removed = reg.Remove("pub-conn")
	assert.False(t, removed)

	// the key is free for the next publisher
	_, err = reg.RegisterPublish("alice-stream", nil, domain.ConnMeta{}, "pub-conn-2")
	assert.NoError(t, err)
}

func TestSessionRegistry_PublishKeys(t *testing.T) {
	reg := NewSessionRegistry()
	assert.Empty(t, reg.PublishKeys())

	_, err := reg.RegisterPublish("alice-stream", nil, domain.ConnMeta{}, "conn-1")
	require.NoError(t, err)
	_, err = reg.RegisterPublish("bob-stream", nil, domain.ConnMeta{}, "conn-2")
	require.NoError(t, err)
	reg.RegisterPlay("alice-stream", nil, domain.ConnMeta{}, "conn-3")

	assert.ElementsMatch(t,
		[]domain.StreamKey{"alice-stream", "bob-stream"}, reg.PublishKeys())
}
