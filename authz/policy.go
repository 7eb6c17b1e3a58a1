// Package authz decides whether an authenticated identity may perform an
// action. All role and ownership rules live in the policy table below; callers
// evaluate it once per operation, before any mutation is attempted.
package authz

import (
	"task-manager/apperrors"
	"task-manager/models"
)

type Action string

const (
	ListTasks        Action = "ListTasks"
	ViewTask         Action = "ViewTask"
	CreateTask       Action = "CreateTask"
	UpdateTaskFields Action = "UpdateTaskFields"
	DeleteTask       Action = "DeleteTask"
	UpdateStatus     Action = "UpdateStatus"
	UpdateChecklist  Action = "UpdateChecklist"
	ListUsers        Action = "ListUsers"
	DeleteUser       Action = "DeleteUser"
	ViewUserSummary  Action = "ViewUserSummary"
	ViewDashboard    Action = "ViewDashboard"
)

// Identity is what authenticate(token) resolves a bearer credential to.
type Identity struct {
	UserID string
	Role   models.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Resource carries the ownership facts a rule may need. Collection-level
// actions pass the zero value.
type Resource struct {
	AssignedTo []string
}

func TaskResource(task *models.Task) Resource {
	if task == nil {
		return Resource{}
	}
	return Resource{AssignedTo: task.AssignedTo}
}

type rule struct {
	roles    []models.Role
	assignee bool // an assignee is allowed regardless of role
}

var policy = map[Action]rule{
	ListTasks:        {roles: []models.Role{models.RoleAdmin, models.RoleMember}},
	ViewDashboard:    {roles: []models.Role{models.RoleAdmin, models.RoleMember}},
	ViewTask:         {roles: []models.Role{models.RoleAdmin}, assignee: true},
	UpdateStatus:     {roles: []models.Role{models.RoleAdmin}, assignee: true},
	UpdateChecklist:  {roles: []models.Role{models.RoleAdmin}, assignee: true},
	CreateTask:       {roles: []models.Role{models.RoleAdmin}},
	UpdateTaskFields: {roles: []models.Role{models.RoleAdmin}},
	DeleteTask:       {roles: []models.Role{models.RoleAdmin}},
	ListUsers:        {roles: []models.Role{models.RoleAdmin}},
	DeleteUser:       {roles: []models.Role{models.RoleAdmin}},
	ViewUserSummary:  {roles: []models.Role{models.RoleAdmin}},
}

type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into a forbidden error; an allowed decision yields nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return apperrors.Forbidden(d.Reason)
}

// Authorize evaluates the policy table. Unknown actions and unknown roles are denied.
func Authorize(identity Identity, action Action, resource Resource) Decision {
	r, ok := policy[action]
	if !ok {
		return deny("unknown action " + string(action))
	}
	if identity.UserID == "" || !identity.Role.Valid() {
		return deny("forbidden")
	}
	for _, role := range r.roles {
		if role == identity.Role {
			return allow()
		}
	}
	if r.assignee {
		for _, id := range resource.AssignedTo {
			if id == identity.UserID {
				return allow()
			}
		}
	}
	return deny("forbidden")
}

// ScopeFor returns the tasks an identity may list: everything for admins,
// only tasks assigned to the caller for members.
func ScopeFor(identity Identity) models.TaskScope {
	if identity.IsAdmin() {
		return models.AllTasks()
	}
	return models.AssignedTo(identity.UserID)
}
