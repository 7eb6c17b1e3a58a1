package models

import (
	"net/mail"
	"strings"
	"time"

	"task-manager/apperrors"
)

// Request DTOs, one per operation. Validate performs the field-level checks
// the handlers run before a request reaches a service; services run them again
// so non-HTTP callers get the same guarantees.

const (
	missedValue  = "missed value"
	invalidValue = "invalid value"
)

type CreateTaskRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    Priority        `json:"priority"`
	DueDate     string          `json:"dueDate"`
	AssignedTo  []string        `json:"assignedTo"`
	Checklist   []ChecklistItem `json:"todoChecklist"`
	Attachments []string        `json:"attachments"`
}

func (r *CreateTaskRequest) Validate() error {
	errors := make(map[string]string)
	validateRequiredText("title", r.Title, errors)
	validateRequiredText("description", r.Description, errors)
	if r.Priority != "" && !r.Priority.Valid() {
		errors["priority"] = invalidValue
	}
	if _, err := ParseDueDate(r.DueDate); err != nil {
		errors["dueDate"] = err.Error()
	}
	validateAssignees(r.AssignedTo, errors)
	validateChecklist(r.Checklist, errors)
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

// UpdateTaskRequest is a partial edit. Nil fields are left untouched.
type UpdateTaskRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *Priority        `json:"priority"`
	DueDate     *string          `json:"dueDate"` // "" clears the due date
	AssignedTo  *[]string        `json:"assignedTo"`
	Checklist   *[]ChecklistItem `json:"todoChecklist"`
	Attachments *[]string        `json:"attachments"`
	Version     *int64           `json:"version"`
}

func (r *UpdateTaskRequest) Validate() error {
	errors := make(map[string]string)
	if r.Title != nil {
		validateRequiredText("title", *r.Title, errors)
	}
	if r.Description != nil {
		validateRequiredText("description", *r.Description, errors)
	}
	if r.Priority != nil && !r.Priority.Valid() {
		errors["priority"] = invalidValue
	}
	if r.DueDate != nil {
		if _, err := ParseDueDate(*r.DueDate); err != nil {
			errors["dueDate"] = err.Error()
		}
	}
	if r.AssignedTo != nil {
		validateAssignees(*r.AssignedTo, errors)
	}
	if r.Checklist != nil {
		validateChecklist(*r.Checklist, errors)
	}
	validateVersion(r.Version, errors)
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

type StatusUpdateRequest struct {
	Status  TaskStatus `json:"status"`
	Version *int64     `json:"version"`
}

func (r *StatusUpdateRequest) Validate() error {
	errors := make(map[string]string)
	if r.Status == "" {
		errors["status"] = missedValue
	} else if !r.Status.Valid() {
		errors["status"] = invalidValue
	}
	validateVersion(r.Version, errors)
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

// ChecklistReplaceRequest replaces the whole checklist. An empty list is
// allowed, an absent one is not.
type ChecklistReplaceRequest struct {
	Checklist []ChecklistItem `json:"todoChecklist"`
	Version   *int64          `json:"version"`
}

func (r *ChecklistReplaceRequest) Validate() error {
	errors := make(map[string]string)
	if r.Checklist == nil {
		errors["todoChecklist"] = missedValue
	} else {
		validateChecklist(r.Checklist, errors)
	}
	validateVersion(r.Version, errors)
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

// ChecklistToggleRequest flips a single item. Version is mandatory: the toggle
// only applies if the task has not been written since the caller read it.
type ChecklistToggleRequest struct {
	Index   int   `json:"index"`
	Version int64 `json:"version"`
}

func (r *ChecklistToggleRequest) Validate() error {
	errors := make(map[string]string)
	if r.Index < 0 {
		errors["index"] = invalidValue
	}
	if r.Version <= 0 {
		errors["version"] = missedValue
	}
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

type RegisterRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	AvatarURL        string `json:"avatarUrl"`
	AdminInviteToken string `json:"adminInviteToken"`
}

func (r *RegisterRequest) Validate() error {
	errors := make(map[string]string)
	validateRequiredText("name", r.Name, errors)
	validateEmail(r.Email, errors)
	if err := ValidatePassword(r.Password); err != "" {
		errors["password"] = err
	}
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = missedValue
	}
	if r.Password == "" {
		errors["password"] = missedValue
	}
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

type ProfileUpdateRequest struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	AvatarURL *string `json:"avatarUrl"`
}

func (r *ProfileUpdateRequest) Validate() error {
	errors := make(map[string]string)
	if r.Name != nil {
		validateRequiredText("name", *r.Name, errors)
	}
	if r.Email != nil {
		validateEmail(*r.Email, errors)
	}
	if r.Password != nil {
		if err := ValidatePassword(*r.Password); err != "" {
			errors["password"] = err
		}
	}
	if len(errors) > 0 {
		return apperrors.Validation(errors)
	}
	return nil
}

// ParseDueDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// An empty string means no due date.
func ParseDueDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.New(apperrors.KindValidation, "expected YYYY-MM-DD or RFC 3339 date")
	}
	t = t.UTC()
	return &t, nil
}

// UniqueIDs trims ids and drops blanks and duplicates, keeping first-seen order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ValidatePassword returns an empty string for an acceptable password and the
// reason otherwise.
func ValidatePassword(password string) string {
	if len(password) < 8 {
		return "password must be at least 8 characters long"
	}
	var hasUpper, hasDigit, hasSpecial bool
	for _, char := range password {
		switch {
		case char >= 'A' && char <= 'Z':
			hasUpper = true
		case char >= '0' && char <= '9':
			hasDigit = true
		case strings.ContainsRune("!@#$%^&*.,-_?", char):
			hasSpecial = true
		}
	}
	if !hasUpper {
		return "password must contain at least one uppercase letter"
	}
	if !hasDigit {
		return "password must contain at least one number"
	}
	if !hasSpecial {
		return "password must contain at least one special character"
	}
	return ""
}

func validateRequiredText(field, value string, errors map[string]string) {
	if strings.TrimSpace(value) == "" {
		errors[field] = missedValue
	}
}

func validateEmail(email string, errors map[string]string) {
	if strings.TrimSpace(email) == "" {
		errors["email"] = missedValue
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		errors["email"] = invalidValue
	}
}

func validateAssignees(ids []string, errors map[string]string) {
	if len(UniqueIDs(ids)) == 0 {
		errors["assignedTo"] = "at least one assignee is required"
	}
}

func validateChecklist(items []ChecklistItem, errors map[string]string) {
	for _, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			errors["todoChecklist"] = "checklist items need a text"
			return
		}
	}
}

func validateVersion(version *int64, errors map[string]string) {
	if version != nil && *version <= 0 {
		errors["version"] = invalidValue
	}
}
