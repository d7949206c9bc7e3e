package shared

import "regexp"

// AccountType is the class of account a menu or role applies to.
type AccountType string

// Well known account classes.
const (
	AccountTypeOperator AccountType = "operator"
	AccountTypeMember   AccountType = "member"
)

var accountTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,31}$`)

// IsValid reports whether t is a well formed account class.
func (t AccountType) IsValid() bool {
	return accountTypePattern.MatchString(string(t))
}

// String returns the raw value.
func (t AccountType) String() string { return string(t) }
