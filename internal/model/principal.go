package model

type Principal struct {
	WorkerID string
	Name     string
	Role     WorkerRole
	Demo     bool
}

func (p Principal) IsAdmin() bool {
	return p.Role == WorkerRoleAdmin
}

// CanAccess reports whether the principal may read data owned by workerID.
func (p Principal) CanAccess(workerID string) bool {
	return p.IsAdmin() || p.WorkerID == workerID
}
