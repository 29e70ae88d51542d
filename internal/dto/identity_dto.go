package dto

import "github.com/google/uuid"

type LinkIdentityRequest struct {
	AnonymousId  string `json:"anonymous_id" validate:"required,max=128"`
	RegisteredId string `json:"registered_id" validate:"required,max=128,nefield=AnonymousId"`
}

type LinkIdentityResponse struct {
	RegisteredId string      `json:"registered_id"`
	Migrated     []uuid.UUID `json:"migrated"`
}
