package topic

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatePublicationsRegisters(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.UpdatePublications("/gazebo/default/pose", "gazebo.msgs.Pose"))

	msgType, ok := m.MsgType("/gazebo/default/pose")
	assert.True(t, ok)
	assert.Equal(t, "gazebo.msgs.Pose", msgType)
	assert.Equal(t, 1, m.Len())
}

func TestUpdatePublicationsCountsReferences(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.UpdatePublications("/a", "T"))
	require.NoError(t, m.UpdatePublications("/a", "T"))

	info, ok := m.Lookup("/a")
	require.True(t, ok)
	assert.Equal(t, 2, info.Publications)

	require.NoError(t, m.Release("/a"))
	assert.Equal(t, 1, m.Len())
	require.NoError(t, m.Release("/a"))
	assert.Equal(t, 0, m.Len())

	assert.ErrorIs(t, m.Release("/a"), ErrUnknownTopic)
}

func TestUpdatePublicationsTypeConflict(t *testing.T) {
	m := NewManager(nil)

	require.NoError(t, m.UpdatePublications("/a", "T1"))
	err := m.UpdatePublications("/a", "T2")
	assert.ErrorIs(t, err, ErrTypeConflict)

	msgType, _ := m.MsgType("/a")
	assert.Equal(t, "T1", msgType)
}

func TestUpdatePublicationsValidation(t *testing.T) {
	m := NewManager(nil)
	assert.ErrorIs(t, m.UpdatePublications("", "T"), ErrEmptyTopic)
	assert.ErrorIs(t, m.UpdatePublications("/a", ""), ErrEmptyMsgType)
	assert.Equal(t, 0, m.Len())
}

func TestTopicsSorted(t *testing.T) {
	m := NewManager(nil)
	for _, name := range []string{"/c", "/a", "/b"} {
		require.NoError(t, m.UpdatePublications(name, "T"))
	}

	var names []string
	for _, info := range m.Topics() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"/a", "/b", "/c"}, names)
}

func TestLookupUnknown(t *testing.T) {
	m := NewManager(nil)
	_, ok := m.Lookup("/missing")
	assert.False(t, ok)
	_, ok = m.MsgType("/missing")
	assert.False(t, ok)
}

func TestManagerConcurrentUpdates(t *testing.T) {
	m := NewManager(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.UpdatePublications("/shared", "T")
		}()
	}
	wg.Wait()

	info, ok := m.Lookup("/shared")
	require.True(t, ok)
	assert.Equal(t, 50, info.Publications)
}

func TestManagerDebugLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := NewManager(logger)

	require.NoError(t, m.UpdatePublications("/a", "T"))
	assert.Contains(t, buf.String(), "topic registered")
	assert.Contains(t, buf.String(), "topic=/a")
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
