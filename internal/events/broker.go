// Package events provides the in-process broadcast of task status changes.
// The broker is constructed once in main and injected where needed; the
// subscriber registry is keyed by workspace id, so a subscriber only ever
// sees events from its own workspace.
package events

import (
	"sync"
	"time"

	"github.com/iliyamo/team-task-board/internal/model"
)

// TaskStatusChanged is published whenever a task moves on the board.
type TaskStatusChanged struct {
	TaskID      uint64           `json:"task_id"`
	ProjectID   uint64           `json:"project_id"`
	WorkspaceID uint64           `json:"workspace_id"`
	Title       string           `json:"title"`
	OldStatus   model.TaskStatus `json:"old_status"`
	NewStatus   model.TaskStatus `json:"new_status"`
	ActorID     uint64           `json:"actor_id"`
	AssigneeIDs []uint64         `json:"assignee_ids"`
	ChangedAt   time.Time        `json:"changed_at"`
}

// Subscription is one listener on a workspace's event stream.  Events
// arrive on C; the channel is buffered and a slow consumer loses events
// rather than blocking the publisher.
type Subscription struct {
	C           chan TaskStatusChanged
	workspaceID uint64
}

// Broker fans TaskStatusChanged events out to per-workspace subscribers.
type Broker struct {
	mu   sync.RWMutex
	subs map[uint64]map[*Subscription]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[uint64]map[*Subscription]struct{})}
}

// Subscribe registers a listener for one workspace.  The caller must
// Unsubscribe when done.
func (b *Broker) Subscribe(workspaceID uint64) *Subscription {
	sub := &Subscription{C: make(chan TaskStatusChanged, 16), workspaceID: workspaceID}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[workspaceID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[workspaceID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a listener and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[sub.workspaceID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.subs, sub.workspaceID)
	}
	close(sub.C)
}

// Publish delivers an event to every subscriber of its workspace.  Sends
// never block: a full buffer drops the event for that subscriber.
func (b *Broker) Publish(ev TaskStatusChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[ev.WorkspaceID] {
		select {
		case sub.C <- ev:
		default:
		}
	}
}
