// Package tasks holds declaration tasks assigned to employees, the stores
// that persist them, and the service the reminder scheduler drives.
package tasks

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a declaration task.
type Status string

const (
	StatusOutstanding Status = "outstanding"
	StatusOverdue     Status = "overdue"
	StatusSubmitted   Status = "submitted"
	StatusReviewed    Status = "reviewed"
)

// Open reports whether the task still awaits the employee's submission.
func (s Status) Open() bool {
	return s == StatusOutstanding || s == StatusOverdue
}

var (
	ErrNotFound            = errors.New("task not found")
	ErrAlreadySubmitted    = errors.New("task already submitted")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// Task is one declaration an employee must complete by DueDate.
type Task struct {
	ID             string     `json:"id"`
	EmployeeName   string     `json:"employee_name"`
	EmployeeEmail  string     `json:"employee_email"`
	ManagerEmail   string     `json:"manager_email,omitempty"`
	TemplateName   string     `json:"template_name"`
	Status         Status     `json:"status"`
	DueDate        time.Time  `json:"due_date"`
	CreatedAt      time.Time  `json:"created_at"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`
	AccessToken    string     `json:"-"`
}

// NewTask is one row of a bulk assignment.
type NewTask struct {
	EmployeeName  string    `json:"employee_name" validate:"required,max=200"`
	EmployeeEmail string    `json:"employee_email" validate:"required,email"`
	ManagerEmail  string    `json:"manager_email,omitempty" validate:"omitempty,email"`
	TemplateName  string    `json:"template_name" validate:"required,max=200"`
	DueDate       time.Time `json:"due_date" validate:"required"`
}

// BulkCreateRequest assigns the same kind of declaration to many employees.
// Each task costs one Central Hub credit.
type BulkCreateRequest struct {
	Tasks []NewTask `json:"tasks" validate:"required,min=1,max=500,dive"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Status        []Status
	EmployeeEmail string
}

func (f Filter) matches(t *Task) bool {
	if f.EmployeeEmail != "" && f.EmployeeEmail != t.EmployeeEmail {
		return false
	}
	if len(f.Status) == 0 {
		return true
	}
	for _, s := range f.Status {
		if s == t.Status {
			return true
		}
	}
	return false
}

func cloneTask(t *Task) *Task {
	c := *t
	if t.SubmittedAt != nil {
		v := *t.SubmittedAt
		c.SubmittedAt = &v
	}
	if t.LastReminderAt != nil {
		v := *t.LastReminderAt
		c.LastReminderAt = &v
	}
	return &c
}
