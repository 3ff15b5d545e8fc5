package taskname

const (
	// License tasks
	LicenseSeatsReconcile    = "license:seats:reconcile"
	LicenseSeatsReconcileAll = "license:seats:reconcile-all"
)
