package domain

import "time"

// Policy is an additional Rego module for package portal.access, stored in
// the access_policies table. Its allow/deny rules are combined with the
// built-in policy.
type Policy struct {
	ID        string
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
}
