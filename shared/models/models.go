package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountSubtype classifies an account as a payment or a savings account.
type AccountSubtype string

const (
	SubtypePayment AccountSubtype = "PAYMENT"
	SubtypeSavings AccountSubtype = "SAVINGS"
)

// ParseAccountSubtype accepts the canonical names case-insensitively, plus the
// legacy "SAVING" spelling.
func ParseAccountSubtype(s string) (AccountSubtype, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PAYMENT":
		return SubtypePayment, nil
	case "SAVINGS", "SAVING":
		return SubtypeSavings, nil
	}
	return "", fmt.Errorf("unknown account subtype %q", s)
}

func (t *AccountSubtype) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountSubtype(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// AccessLevel is the kind of access a grantee receives on a shared account.
type AccessLevel string

const (
	AccessRead  AccessLevel = "READ"
	AccessWrite AccessLevel = "WRITE"
)

func (a AccessLevel) Valid() bool {
	return a == AccessRead || a == AccessWrite
}

// Account is one of a user's own accounts.
type Account struct {
	AccountNumber     string          `json:"accountNumber" yaml:"accountNumber"`
	AccountHolderName string          `json:"accountHolderName" yaml:"accountHolderName"`
	Balance           decimal.Decimal `json:"balance" yaml:"balance"`
	Type              AccountSubtype  `json:"type" yaml:"type"`
}

// AccountSnapshot is a point-in-time copy of a grantor account, stored on the
// grantee. It is never updated after creation.
type AccountSnapshot struct {
	AccountNumber     string          `json:"accountNumber"`
	AccountHolderName string          `json:"accountHolderName"`
	Balance           decimal.Decimal `json:"balance"`
	AccountSubtype    AccountSubtype  `json:"accountSubtype"`
}

// NewAccountSnapshot copies the sharable fields of account and stamps it with
// subtype. The subtype is taken as given, not from account.Type.
func NewAccountSnapshot(account Account, subtype AccountSubtype) AccountSnapshot {
	return AccountSnapshot{
		AccountNumber:     account.AccountNumber,
		AccountHolderName: account.AccountHolderName,
		Balance:           account.Balance,
		AccountSubtype:    subtype,
	}
}

// Grants holds the snapshots granted to a user, keyed by access level.
// Lists keep insertion order and may contain duplicates.
type Grants map[AccessLevel][]AccountSnapshot

// UserRecord is the persisted aggregate: a user, the accounts they own and the
// accounts others have granted them access to.
type UserRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Accounts  []Account `json:"accounts"`
	Grants    Grants    `json:"grants"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdTimestamp"`
	UpdatedAt time.Time `json:"updatedTimestamp"`
}

// OwnedAccount returns the user's own account with the given number.
func (u *UserRecord) OwnedAccount(accountNumber string) (Account, bool) {
	for _, a := range u.Accounts {
		if a.AccountNumber == accountNumber {
			return a, true
		}
	}
	return Account{}, false
}

// Grant appends snapshot to the list for level.
func (u *UserRecord) Grant(level AccessLevel, snapshot AccountSnapshot) {
	if u.Grants == nil {
		u.Grants = Grants{}
	}
	u.Grants[level] = append(u.Grants[level], snapshot)
}

// Granted returns the snapshots granted to the user for level.
func (u *UserRecord) Granted(level AccessLevel) []AccountSnapshot {
	return u.Grants[level]
}

// Clone returns a deep copy so that callers can append without aliasing the
// original record's slices.
func (u *UserRecord) Clone() *UserRecord {
	c := *u
	c.Accounts = append([]Account(nil), u.Accounts...)
	c.Grants = make(Grants, len(u.Grants))
	for level, list := range u.Grants {
		c.Grants[level] = append([]AccountSnapshot(nil), list...)
	}
	return &c
}
