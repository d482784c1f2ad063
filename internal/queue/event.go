// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into notifications.
package queue

// TaskStatusChangedEvent is published when a task's status changes.  It
// carries enough information for downstream consumers to write
// notifications without querying the primary database.
type TaskStatusChangedEvent struct {
	TaskID      uint64   `json:"task_id"`
	ProjectID   uint64   `json:"project_id"`
	WorkspaceID uint64   `json:"workspace_id"`
	Title       string   `json:"title"`
	OldStatus   string   `json:"old_status"`
	NewStatus   string   `json:"new_status"`
	ActorID     uint64   `json:"actor_id"`
	AssigneeIDs []uint64 `json:"assignee_ids"`
	CreatedBy   uint64   `json:"created_by"`
	ChangedAt   string   `json:"changed_at"`
}
