package model

// OrgContext scopes a core operation to a tenant. It is passed
// explicitly into ranking, scheduling and fulfillment calls instead of
// being read from ambient request state, which keeps the engine testable
// in isolation. Authorization happens before the call; the engine
// assumes the caller is allowed to act for this organization.
type OrgContext struct {
	OrganizationID string
	UserID         string
}
