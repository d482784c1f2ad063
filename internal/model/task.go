package model

import "time"

// TaskStatus is a task's position on the board.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// ValidTaskStatus reports whether s is a known task status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

// Task mirrors the `tasks` table.
type Task struct {
	ID          uint64
	ProjectID   uint64
	Title       string
	Description *string
	Status      TaskStatus
	CreatedBy   uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NotificationStatus tracks whether a notification was seen by its recipient.
type NotificationStatus string

const (
	NotificationDelivered NotificationStatus = "DELIVERED"
	NotificationSeen      NotificationStatus = "SEEN"
)

// Notification mirrors the `notifications` table.  Rows are written by the
// queue consumer when task events arrive.
type Notification struct {
	ID                uint64
	RecipientID       uint64
	Title             string
	Body              string
	Status            NotificationStatus
	RelatedEntityID   uint64
	RelatedEntityType string
	CreatedAt         time.Time
}
