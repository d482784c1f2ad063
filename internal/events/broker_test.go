package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/team-task-board/internal/model"
)

func TestPublishFansOutToWorkspaceSubscribers(t *testing.T) {
	b := NewBroker()
	s1 := b.Subscribe(1)
	s2 := b.Subscribe(1)
	defer b.Unsubscribe(s1)
	defer b.Unsubscribe(s2)

	ev := TaskStatusChanged{TaskID: 7, WorkspaceID: 1, OldStatus: model.TaskTodo, NewStatus: model.TaskDone}
	b.Publish(ev)

	for _, s := range []*Subscription{s1, s2} {
		select {
		case got := <-s.C:
			assert.Equal(t, ev.TaskID, got.TaskID)
			assert.Equal(t, model.TaskDone, got.NewStatus)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestWorkspaceIsolation(t *testing.T) {
	b := NewBroker()
	other := b.Subscribe(2)
	defer b.Unsubscribe(other)

	b.Publish(TaskStatusChanged{TaskID: 7, WorkspaceID: 1})

	select {
	case ev := <-other.C:
		t.Fatalf("subscriber of workspace 2 received event for workspace %d", ev.WorkspaceID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	b.Unsubscribe(sub)

	_, open := <-sub.C
	assert.False(t, open)

	// Double unsubscribe must not panic or double-close.
	b.Unsubscribe(sub)

	// Publishing after unsubscribe reaches nobody.
	b.Publish(TaskStatusChanged{WorkspaceID: 1})
}

func TestSlowSubscriberDropsEventsInsteadOfBlocking(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(1)
	defer b.Unsubscribe(sub)

	// Nobody drains the channel; publishing past the buffer must return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(sub.C)+10; i++ {
			b.Publish(TaskStatusChanged{TaskID: uint64(i), WorkspaceID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	require.Equal(t, cap(sub.C), len(sub.C))
}
