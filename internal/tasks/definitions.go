package tasks

// DefineTasks registers all available tasks against the given
// collaborators.
func DefineTasks(deps *Deps) {
	// Register general tasks
	RegisterHandler(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Register payment lifecycle tasks
	reconcile := &ReconcilePaymentsTaskDef{deps: deps}
	RegisterHandler(reconcile.TaskID(), reconcile.HandleExecution)

	expire := &ExpireInvoicesTaskDef{deps: deps}
	RegisterHandler(expire.TaskID(), expire.HandleExecution)

	withdrawals := &ReconcileWithdrawalsTaskDef{deps: deps}
	RegisterHandler(withdrawals.TaskID(), withdrawals.HandleExecution)

	notify := &NotifyMerchantsTaskDef{deps: deps}
	RegisterHandler(notify.TaskID(), notify.HandleExecution)
}
