package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PermittedAccountView is the API projection of a granted snapshot.
// The subtype is implied by the endpoint and is not serialised.
type PermittedAccountView struct {
	AccountNumber     string          `json:"accountNumber"`
	AccountHolderName string          `json:"accountHolderName"`
	Balance           decimal.Decimal `json:"balance"`
}

// MarshalJSON writes the balance as a JSON number rather than the quoted
// string decimal.Decimal produces by default.
func (v PermittedAccountView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountNumber     string      `json:"accountNumber"`
		AccountHolderName string      `json:"accountHolderName"`
		Balance           json.Number `json:"balance"`
	}{
		AccountNumber:     v.AccountNumber,
		AccountHolderName: v.AccountHolderName,
		Balance:           json.Number(v.Balance.String()),
	})
}

// SnapshotToView strips the subtype from a snapshot.
func SnapshotToView(s AccountSnapshot) PermittedAccountView {
	return PermittedAccountView{
		AccountNumber:     s.AccountNumber,
		AccountHolderName: s.AccountHolderName,
		Balance:           s.Balance,
	}
}
