package models

import (
	"math"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "Pending"
	StatusInProgress TaskStatus = "In Progress"
	StatusCompleted  TaskStatus = "Completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type ChecklistItem struct {
	Text      string `bson:"text" json:"text"`
	Completed bool   `bson:"completed" json:"completed"`
}

type Task struct {
	ID          string          `bson:"_id" json:"id"`
	Title       string          `bson:"title" json:"title"`
	Description string          `bson:"description" json:"description"`
	Priority    Priority        `bson:"priority" json:"priority"`
	Status      TaskStatus      `bson:"status" json:"status"`
	DueDate     *time.Time      `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	CreatedBy   string          `bson:"createdBy" json:"createdBy"`
	AssignedTo  []string        `bson:"assignedTo" json:"assignedTo"`
	Checklist   []ChecklistItem `bson:"todoChecklist" json:"todoChecklist"`
	Progress    int             `bson:"progress" json:"progress"`
	Attachments []string        `bson:"attachments" json:"attachments"`
	Version     int64           `bson:"version" json:"version"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time       `bson:"updatedAt" json:"updatedAt"`
}

// CompletedCount returns how many checklist items are marked completed.
func (t *Task) CompletedCount() int {
	n := 0
	for _, item := range t.Checklist {
		if item.Completed {
			n++
		}
	}
	return n
}

func (t *Task) IsAssignee(userID string) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// ChecklistProgress is round(100 * completed / total), 0 for an empty list.
func ChecklistProgress(items []ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, item := range items {
		if item.Completed {
			done++
		}
	}
	return int(math.Round(100 * float64(done) / float64(len(items))))
}

// StatusForProgress derives the status a checklist-driven progress value implies.
func StatusForProgress(progress int) TaskStatus {
	switch {
	case progress >= 100:
		return StatusCompleted
	case progress > 0:
		return StatusInProgress
	default:
		return StatusPending
	}
}

// ApplyChecklist replaces the checklist and recomputes progress and status.
func (t *Task) ApplyChecklist(items []ChecklistItem) {
	t.Checklist = items
	t.Progress = ChecklistProgress(items)
	t.Status = StatusForProgress(t.Progress)
}

// TaskScope selects the tasks visible to an actor. An empty AssigneeID means all tasks.
type TaskScope struct {
	AssigneeID string
}

func AllTasks() TaskScope {
	return TaskScope{}
}

func AssignedTo(userID string) TaskScope {
	return TaskScope{AssigneeID: userID}
}

// TaskListItem is a task annotated with its completed checklist count.
type TaskListItem struct {
	Task
	CompletedTodoCount int `json:"completedTodoCount"`
}

type TaskList struct {
	Tasks         []TaskListItem   `json:"tasks"`
	StatusSummary TaskDistribution `json:"statusSummary"`
}
