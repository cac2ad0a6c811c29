package cqrs

import "github.com/eaglebank/authorization-service/shared/models"

// ListPermittedAccountsQuery fetches the snapshots granted to UserName for
// Access, restricted to AccountSubtype.
type ListPermittedAccountsQuery struct {
	UserName       string
	Access         models.AccessLevel
	AccountSubtype models.AccountSubtype
}
