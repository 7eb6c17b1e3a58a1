package services

import (
	"context"
	"testing"

	"task-manager/apperrors"
	"task-manager/models"
	"task-manager/repositories"
)

func TestCreateTask_Defaults(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)

	task, err := env.taskSvc.CreateTask(context.Background(), admin, models.CreateTaskRequest{
		Title:       "  Write report ",
		Description: "quarterly",
		DueDate:     "2025-04-01",
		AssignedTo:  []string{member.UserID, member.UserID},
		Checklist:   items(false, false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if task.Status != models.StatusPending || task.Progress != 0 {
		t.Fatalf("expected Pending/0, got %s/%d", task.Status, task.Progress)
	}
	if task.Priority != models.PriorityLow {
		t.Fatalf("expected default priority Low, got %s", task.Priority)
	}
	if task.CreatedBy != admin.UserID {
		t.Fatalf("expected createdBy %s, got %s", admin.UserID, task.CreatedBy)
	}
	if len(task.AssignedTo) != 1 {
		t.Fatalf("expected duplicate assignees to collapse, got %v", task.AssignedTo)
	}
	if task.Title != "Write report" || task.Version != 1 {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.DueDate == nil || task.DueDate.Format("2006-01-02") != "2025-04-01" {
		t.Fatalf("unexpected due date %v", task.DueDate)
	}
}

func TestCreateTask_FarFutureDueDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)

	created, err := env.taskSvc.CreateTask(ctx, admin, models.CreateTaskRequest{
		Title: "Time capsule", Description: "open later", DueDate: "3000-01-01",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	task, err := env.taskSvc.GetTask(ctx, admin, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if task.DueDate == nil || task.DueDate.Format("2006-01-02") != "3000-01-01" {
		t.Fatalf("expected due date 3000-01-01, got %v", task.DueDate)
	}

	overview, err := env.dashboard.Overview(ctx, admin, models.AllTasks())
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Statistics.OverdueTasks != 0 {
		t.Fatalf("expected no overdue tasks, got %d", overview.Statistics.OverdueTasks)
	}
}

func TestCreateTask_Rejections(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)

	tests := []struct {
		name  string
		req   models.CreateTaskRequest
		kind  apperrors.Kind
		field string
	}{
		{
			name: "empty assignees",
			req:  models.CreateTaskRequest{Title: "t", Description: "d", AssignedTo: []string{}},
			kind: apperrors.KindValidation, field: "assignedTo",
		},
		{
			name: "blank assignees",
			req:  models.CreateTaskRequest{Title: "t", Description: "d", AssignedTo: []string{" ", ""}},
			kind: apperrors.KindValidation, field: "assignedTo",
		},
		{
			name: "missing title",
			req:  models.CreateTaskRequest{Description: "d", AssignedTo: []string{member.UserID}},
			kind: apperrors.KindValidation, field: "title",
		},
		{
			name: "missing description",
			req:  models.CreateTaskRequest{Title: "t", AssignedTo: []string{member.UserID}},
			kind: apperrors.KindValidation, field: "description",
		},
		{
			name: "unknown assignee",
			req:  models.CreateTaskRequest{Title: "t", Description: "d", AssignedTo: []string{"nobody"}},
			kind: apperrors.KindNotFound,
		},
		{
			name: "bad priority",
			req:  models.CreateTaskRequest{Title: "t", Description: "d", Priority: "Urgent", AssignedTo: []string{member.UserID}},
			kind: apperrors.KindValidation, field: "priority",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.taskSvc.CreateTask(context.Background(), admin, tt.req)
			if !apperrors.Is(err, tt.kind) {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if tt.field != "" {
				if _, ok := apperrors.FieldsOf(err)[tt.field]; !ok {
					t.Fatalf("expected field %q in %v", tt.field, apperrors.FieldsOf(err))
				}
			}
		})
	}

	n, err := env.tasks.Count(context.Background(), repositories.TaskFilter{})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no persisted tasks, got %d", n)
	}
}

func TestCreateTask_MemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	member := env.addUser(t, "member", models.RoleMember)

	_, err := env.taskSvc.CreateTask(context.Background(), member, models.CreateTaskRequest{
		Title: "t", Description: "d", AssignedTo: []string{member.UserID},
	})
	if !apperrors.Is(err, apperrors.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateTask_DerivesFromSubmittedChecklist(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)

	task := env.createTask(t, admin, "half done", items(true, false), member.UserID)
	if task.Progress != 50 || task.Status != models.StatusInProgress {
		t.Fatalf("expected 50/In Progress, got %d/%s", task.Progress, task.Status)
	}
}

func TestReplaceChecklist_ProgressAndStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)
	task := env.createTask(t, admin, "checklist", nil, member.UserID)

	// every completion pattern of checklists up to five items
	for size := 0; size <= 5; size++ {
		for mask := 0; mask < 1<<size; mask++ {
			done := make([]bool, size)
			completed := 0
			for i := range done {
				done[i] = mask&(1<<i) != 0
				if done[i] {
					completed++
				}
			}

			got, err := env.taskSvc.ReplaceChecklist(context.Background(), member, task.ID,
				models.ChecklistReplaceRequest{Checklist: items(done...)})
			if err != nil {
				t.Fatalf("size %d mask %b: %v", size, mask, err)
			}

			want := 0
			if size > 0 {
				want = int(float64(100*completed)/float64(size) + 0.5)
			}
			if got.Progress != want {
				t.Fatalf("size %d mask %b: expected progress %d, got %d", size, mask, want, got.Progress)
			}
			if got.Status != models.StatusForProgress(want) {
				t.Fatalf("size %d mask %b: progress %d with status %s", size, mask, got.Progress, got.Status)
			}
		}
	}
}

func TestReplaceChecklist_Rounding(t *testing.T) {
	tests := []struct {
		done []bool
		want int
	}{
		{[]bool{true, false, false}, 33},
		{[]bool{true, true, false}, 67},
		{[]bool{true, false, false, false, false, false, false, false}, 13},
		{[]bool{}, 0},
	}
	for _, tt := range tests {
		if got := models.ChecklistProgress(items(tt.done...)); got != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.done, tt.want, got)
		}
	}
}

func TestChecklistScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)

	task := env.createTask(t, admin, "scenario", items(false, false), member.UserID)
	if task.Progress != 0 || task.Status != models.StatusPending {
		t.Fatalf("expected 0/Pending, got %d/%s", task.Progress, task.Status)
	}

	task, err := env.taskSvc.ReplaceChecklist(ctx, member, task.ID, models.ChecklistReplaceRequest{Checklist: items(true, false)})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if task.Progress != 50 || task.Status != models.StatusInProgress {
		t.Fatalf("expected 50/In Progress, got %d/%s", task.Progress, task.Status)
	}

	task, err = env.taskSvc.ReplaceChecklist(ctx, member, task.ID, models.ChecklistReplaceRequest{Checklist: items(true, true)})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if task.Progress != 100 || task.Status != models.StatusCompleted {
		t.Fatalf("expected 100/Completed, got %d/%s", task.Progress, task.Status)
	}
}

func TestToggleChecklistItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)
	task := env.createTask(t, admin, "toggle", items(false, false), member.UserID)

	toggled, err := env.taskSvc.ToggleChecklistItem(ctx, member, task.ID, models.ChecklistToggleRequest{Index: 0, Version: task.Version})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.Checklist[0].Completed || toggled.Progress != 50 || toggled.Version != task.Version+1 {
		t.Fatalf("unexpected task after toggle: %+v", toggled)
	}

	// a second caller still holding the old version loses
	_, err = env.taskSvc.ToggleChecklistItem(ctx, admin, task.ID, models.ChecklistToggleRequest{Index: 1, Version: task.Version})
	if !apperrors.Is(err, apperrors.KindStaleWrite) {
		t.Fatalf("expected stale_write, got %v", err)
	}

	stored, err := env.tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Checklist[1].Completed {
		t.Fatalf("stale toggle must not be applied")
	}

	_, err = env.taskSvc.ToggleChecklistItem(ctx, member, task.ID, models.ChecklistToggleRequest{Index: 5, Version: stored.Version})
	if !apperrors.Is(err, apperrors.KindValidation) {
		t.Fatalf("expected validation error for index out of range, got %v", err)
	}

	_, err = env.taskSvc.ToggleChecklistItem(ctx, member, task.ID, models.ChecklistToggleRequest{Index: 0})
	if !apperrors.Is(err, apperrors.KindValidation) {
		t.Fatalf("expected validation error for missing version, got %v", err)
	}
}

func TestVersionedReplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)
	task := env.createTask(t, admin, "versioned", items(false), member.UserID)

	if _, err := env.taskSvc.ReplaceChecklist(ctx, member, task.ID, models.ChecklistReplaceRequest{
		Checklist: items(true), Version: int64Ptr(task.Version),
	}); err != nil {
		t.Fatalf("versioned replace: %v", err)
	}

	_, err := env.taskSvc.ReplaceChecklist(ctx, member, task.ID, models.ChecklistReplaceRequest{
		Checklist: items(false), Version: int64Ptr(task.Version),
	})
	if !apperrors.Is(err, apperrors.KindStaleWrite) {
		t.Fatalf("expected stale_write, got %v", err)
	}

	// without a version the last writer wins
	got, err := env.taskSvc.ReplaceChecklist(ctx, member, task.ID, models.ChecklistReplaceRequest{Checklist: items(false)})
	if err != nil {
		t.Fatalf("unversioned replace: %v", err)
	}
	if got.Progress != 0 || got.Version != task.Version+2 {
		t.Fatalf("unexpected task: progress %d version %d", got.Progress, got.Version)
	}
}

func TestSetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)

	t.Run("completed forces checklist", func(t *testing.T) {
		task := env.createTask(t, admin, "force", items(false, true, false), member.UserID)
		got, err := env.taskSvc.SetStatus(ctx, member, task.ID, models.StatusUpdateRequest{Status: models.StatusCompleted})
		if err != nil {
			t.Fatalf("set status: %v", err)
		}
		if got.Progress != 100 || got.Status != models.StatusCompleted {
			t.Fatalf("expected 100/Completed, got %d/%s", got.Progress, got.Status)
		}
		for i, item := range got.Checklist {
			if !item.Completed {
				t.Fatalf("item %d not completed", i)
			}
		}
	})

	t.Run("completed with empty checklist", func(t *testing.T) {
		task := env.createTask(t, admin, "empty", nil, member.UserID)
		got, err := env.taskSvc.SetStatus(ctx, admin, task.ID, models.StatusUpdateRequest{Status: models.StatusCompleted})
		if err != nil {
			t.Fatalf("set status: %v", err)
		}
		if len(got.Checklist) != 0 || got.Progress != 100 || got.Status != models.StatusCompleted {
			t.Fatalf("unexpected task: %+v", got)
		}
	})

	t.Run("leaving completed keeps checklist", func(t *testing.T) {
		task := env.createTask(t, admin, "reopen", items(true, true), member.UserID)
		got, err := env.taskSvc.SetStatus(ctx, member, task.ID, models.StatusUpdateRequest{Status: models.StatusPending})
		if err != nil {
			t.Fatalf("set status: %v", err)
		}
		if got.Status != models.StatusPending || got.Progress != 100 || !got.Checklist[0].Completed {
			t.Fatalf("expected only the status to change, got %+v", got)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		task := env.createTask(t, admin, "invalid", nil, member.UserID)
		_, err := env.taskSvc.SetStatus(ctx, admin, task.ID, models.StatusUpdateRequest{Status: "Done"})
		if !apperrors.Is(err, apperrors.KindValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestNonAssigneeMemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	assignee := env.addUser(t, "assignee", models.RoleMember)
	outsider := env.addUser(t, "outsider", models.RoleMember)
	task := env.createTask(t, admin, "private", items(false), assignee.UserID)

	title := "hijacked"
	checks := map[string]error{}
	_, checks["SetStatus"] = env.taskSvc.SetStatus(ctx, outsider, task.ID, models.StatusUpdateRequest{Status: models.StatusCompleted})
	_, checks["ReplaceChecklist"] = env.taskSvc.ReplaceChecklist(ctx, outsider, task.ID, models.ChecklistReplaceRequest{Checklist: items(true)})
	_, checks["ToggleChecklistItem"] = env.taskSvc.ToggleChecklistItem(ctx, outsider, task.ID, models.ChecklistToggleRequest{Version: task.Version})
	_, checks["UpdateTask"] = env.taskSvc.UpdateTask(ctx, outsider, task.ID, models.UpdateTaskRequest{Title: &title})
	_, checks["GetTask"] = env.taskSvc.GetTask(ctx, outsider, task.ID)
	checks["DeleteTask"] = env.taskSvc.DeleteTask(ctx, outsider, task.ID)

	for op, err := range checks {
		if !apperrors.Is(err, apperrors.KindForbidden) {
			t.Errorf("%s: expected forbidden, got %v", op, err)
		}
	}

	// an assignee may still not edit fields or delete
	_, err := env.taskSvc.UpdateTask(ctx, assignee, task.ID, models.UpdateTaskRequest{Title: &title})
	if !apperrors.Is(err, apperrors.KindForbidden) {
		t.Fatalf("expected forbidden for assignee field edit, got %v", err)
	}

	stored, err := env.tasks.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored.Version != task.Version || stored.Title != task.Title {
		t.Fatalf("forbidden calls must not write, got %+v", stored)
	}
}

func TestUpdateTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	first := env.addUser(t, "first", models.RoleMember)
	second := env.addUser(t, "second", models.RoleMember)
	task := env.createTask(t, admin, "edit me", items(true, false), first.UserID)

	priority := models.PriorityHigh
	title := "edited"
	assignees := []string{second.UserID}
	got, err := env.taskSvc.UpdateTask(ctx, admin, task.ID, models.UpdateTaskRequest{
		Title:      &title,
		Priority:   &priority,
		AssignedTo: &assignees,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "edited" || got.Priority != models.PriorityHigh || got.AssignedTo[0] != second.UserID {
		t.Fatalf("fields not applied: %+v", got)
	}
	if got.Description != task.Description || got.Progress != 50 || got.Status != models.StatusInProgress {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if got.CreatedBy != admin.UserID {
		t.Fatalf("createdBy changed to %s", got.CreatedBy)
	}

	checklist := items(true, true)
	got, err = env.taskSvc.UpdateTask(ctx, admin, task.ID, models.UpdateTaskRequest{Checklist: &checklist})
	if err != nil {
		t.Fatalf("update checklist: %v", err)
	}
	if got.Progress != 100 || got.Status != models.StatusCompleted {
		t.Fatalf("expected recompute on checklist replace, got %d/%s", got.Progress, got.Status)
	}

	empty := []string{}
	_, err = env.taskSvc.UpdateTask(ctx, admin, task.ID, models.UpdateTaskRequest{AssignedTo: &empty})
	if !apperrors.Is(err, apperrors.KindValidation) {
		t.Fatalf("expected validation error for empty assignees, got %v", err)
	}

	_, err = env.taskSvc.UpdateTask(ctx, admin, "missing", models.UpdateTaskRequest{Title: &title})
	if !apperrors.Is(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}

	_, err = env.taskSvc.UpdateTask(ctx, admin, task.ID, models.UpdateTaskRequest{Title: &title, Version: int64Ptr(1)})
	if !apperrors.Is(err, apperrors.KindStaleWrite) {
		t.Fatalf("expected stale_write for old version, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)
	task := env.createTask(t, admin, "doomed", nil, member.UserID)

	if err := env.taskSvc.DeleteTask(ctx, admin, "does-not-exist"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	n, _ := env.tasks.Count(ctx, repositories.TaskFilter{})
	if n != 1 {
		t.Fatalf("store changed by failed delete: %d tasks", n)
	}

	if err := env.taskSvc.DeleteTask(ctx, admin, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.taskSvc.DeleteTask(ctx, admin, task.ID); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found on repeated delete, got %v", err)
	}
}

func TestListTasks_Scope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	alice := env.addUser(t, "alice", models.RoleMember)
	bob := env.addUser(t, "bob", models.RoleMember)

	env.createTask(t, admin, "alice-1", items(true, false), alice.UserID)
	env.createTask(t, admin, "bob-1", nil, bob.UserID)
	env.createTask(t, admin, "both", items(true), alice.UserID, bob.UserID)

	all, err := env.taskSvc.ListTasks(ctx, admin, "")
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if len(all.Tasks) != 3 || all.StatusSummary.All != 3 {
		t.Fatalf("admin should see all tasks, got %d", len(all.Tasks))
	}
	if all.Tasks[0].Title != "both" {
		t.Fatalf("expected newest first, got %s", all.Tasks[0].Title)
	}
	if all.Tasks[0].CompletedTodoCount != 1 {
		t.Fatalf("expected completed count 1, got %d", all.Tasks[0].CompletedTodoCount)
	}

	mine, err := env.taskSvc.ListTasks(ctx, alice, "")
	if err != nil {
		t.Fatalf("member list: %v", err)
	}
	if len(mine.Tasks) != 2 {
		t.Fatalf("alice should see 2 tasks, got %d", len(mine.Tasks))
	}
	for _, item := range mine.Tasks {
		if !item.IsAssignee(alice.UserID) {
			t.Fatalf("member saw foreign task %s", item.Title)
		}
	}

	completed, err := env.taskSvc.ListTasks(ctx, alice, models.StatusCompleted)
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(completed.Tasks) != 1 || completed.Tasks[0].Title != "both" {
		t.Fatalf("unexpected filtered list: %+v", completed.Tasks)
	}
	if completed.StatusSummary.All != 2 || completed.StatusSummary.InProgress != 1 {
		t.Fatalf("summary should cover the whole scope, got %+v", completed.StatusSummary)
	}

	if _, err := env.taskSvc.ListTasks(ctx, alice, "Done"); !apperrors.Is(err, apperrors.KindValidation) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}
}

func TestGetTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.addUser(t, "admin", models.RoleAdmin)
	member := env.addUser(t, "member", models.RoleMember)
	task := env.createTask(t, admin, "visible", nil, member.UserID)

	for _, actor := range []string{"admin", "member"} {
		identity := admin
		if actor == "member" {
			identity = member
		}
		got, err := env.taskSvc.GetTask(ctx, identity, task.ID)
		if err != nil {
			t.Fatalf("%s get: %v", actor, err)
		}
		if got.ID != task.ID {
			t.Fatalf("%s got wrong task %s", actor, got.ID)
		}
	}

	if _, err := env.taskSvc.GetTask(ctx, admin, "missing"); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}
