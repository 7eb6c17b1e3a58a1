package models

type TaskDistribution struct {
	All        int64 `json:"All"`
	Pending    int64 `json:"Pending"`
	InProgress int64 `json:"InProgress"`
	Completed  int64 `json:"Completed"`
}

type PriorityDistribution struct {
	Low    int64 `json:"Low"`
	Medium int64 `json:"Medium"`
	High   int64 `json:"High"`
}

// UserTaskSummary counts the tasks a member appears in. A task with several
// assignees is counted once for each of them.
type UserTaskSummary struct {
	User            User  `json:"user"`
	TaskCount       int64 `json:"taskCount"`
	PendingTasks    int64 `json:"pendingTasks"`
	InProgressTasks int64 `json:"inProgressTasks"`
	CompletedTasks  int64 `json:"completedTasks"`
}

type DashboardStatistics struct {
	TotalTasks     int64 `json:"totalTasks"`
	PendingTasks   int64 `json:"pendingTasks"`
	CompletedTasks int64 `json:"completedTasks"`
	OverdueTasks   int64 `json:"overdueTasks"`
}

type DashboardCharts struct {
	TaskDistribution   TaskDistribution     `json:"taskDistribution"`
	TaskPriorityLevels PriorityDistribution `json:"taskPriorityLevels"`
}

type DashboardOverview struct {
	Statistics  DashboardStatistics `json:"statistics"`
	Charts      DashboardCharts     `json:"charts"`
	RecentTasks []Task              `json:"recentTasks"`
}
