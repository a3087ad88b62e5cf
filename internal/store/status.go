package store

// AuditStatus is the outcome of an analysis request as stored in
// analysis_audit.status.
type AuditStatus string

const (
	AuditStatusCompleted AuditStatus = "completed"
	AuditStatusFailed    AuditStatus = "failed"
	AuditStatusRejected  AuditStatus = "rejected"
)
