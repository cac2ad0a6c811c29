package cqrs

import "github.com/eaglebank/authorization-service/shared/models"

// GrantAccessCommand asks for GrantorName's account to be shared with
// GranteeName. AccountSubtype comes from the endpoint, not the payload.
type GrantAccessCommand struct {
	GrantorName    string
	GranteeName    string
	AccountNumber  string
	AccountSubtype models.AccountSubtype
	Access         models.AccessLevel
}
