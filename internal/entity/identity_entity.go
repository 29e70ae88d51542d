package entity

import "time"

type IdentityKind string

const (
	IdentityAnonymous  IdentityKind = "anonymous"
	IdentityRegistered IdentityKind = "registered"
)

func (k IdentityKind) Valid() bool {
	return k == IdentityAnonymous || k == IdentityRegistered
}

type Identity struct {
	Id        string
	Kind      IdentityKind
	LinkedTo  *string // registered identity this anonymous identity was migrated into
	CreatedAt time.Time
}
