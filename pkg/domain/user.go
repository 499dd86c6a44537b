package domain

import "strings"

// Account is one of a user's wallets. Balance is in cents.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

// BalanceString renders the balance as dollars.
func (a Account) BalanceString() string {
	return FormatCents(a.Balance)
}

// User is the server's snapshot of the logged-in user. It is replaced
// wholesale on every response that carries one.
type User struct {
	UserID          string    `json:"userId"`
	Name            *string   `json:"name"`
	E164PhoneNumber string    `json:"e164PhoneNumber"`
	Accounts        []Account `json:"accounts"`
}

// DisplayName returns the user's name, falling back to the phone number.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		return *u.Name
	}
	return u.E164PhoneNumber
}

// NameOrEmpty returns the name or "" when unset.
func (u *User) NameOrEmpty() string {
	if u == nil || u.Name == nil {
		return ""
	}
	return *u.Name
}

// TotalBalance sums the balances of all accounts in cents.
func (u *User) TotalBalance() int64 {
	if u == nil {
		return 0
	}
	var total int64
	for _, a := range u.Accounts {
		total += a.Balance
	}
	return total
}

// Account looks up an account by ID.
func (u *User) Account(id string) (Account, bool) {
	if u == nil {
		return Account{}, false
	}
	for _, a := range u.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// FindAccount resolves a reference typed by a person: an exact ID, or a
// case-insensitive account name.
func (u *User) FindAccount(ref string) (Account, bool) {
	if a, ok := u.Account(ref); ok {
		return a, true
	}
	if u == nil {
		return Account{}, false
	}
	for _, a := range u.Accounts {
		if strings.EqualFold(a.Name, strings.TrimSpace(ref)) {
			return a, true
		}
	}
	return Account{}, false
}

// OtherAccounts returns every account except the one with the given ID,
// in order. Used to offer transfer targets.
func (u *User) OtherAccounts(id string) []Account {
	if u == nil {
		return nil
	}
	out := make([]Account, 0, len(u.Accounts))
	for _, a := range u.Accounts {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}

// Clone returns a deep copy so snapshots handed out never alias.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	if u.Accounts != nil {
		c.Accounts = append([]Account(nil), u.Accounts...)
	}
	return &c
}

// StringPtr is a small helper for optional names.
func StringPtr(s string) *string { return &s }
