package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type BankAccount struct {
	AccountNumber     string    `json:"accountNumber" validate:"required"`
	IFSCCode          string    `json:"ifscCode" validate:"required"`
	BankName          string    `json:"bankName" validate:"required"`
	AccountHolderName string    `json:"accountHolderName" validate:"required"`
	AddedAt           time.Time `json:"addedAt"`
}

type DematAccount struct {
	DPID           string    `json:"dpId" validate:"required"`
	ClientID       string    `json:"clientId" validate:"required"`
	DepositoryName string    `json:"depositoryName" validate:"required"`
	AddedAt        time.Time `json:"addedAt"`
}

// AppliedIPORef is the denormalized cross-reference kept on the user for every submitted application.
type AppliedIPORef struct {
	IPOID             int64     `json:"ipoId"`
	ApplicationNumber string    `json:"applicationNumber"`
	AppliedAt         time.Time `json:"appliedAt"`
}

// User is the stored identity record. PasswordHash is persisted but never leaves the service
// layer; API responses use Profile.
type User struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"passwordHash"`
	Role         string          `json:"role"`
	Phone        string          `json:"phone"`
	PANCard      string          `json:"panCard"`
	BankAccount  *BankAccount    `json:"bankAccount"`
	UPIID        *string         `json:"upiId"`
	DematAccount *DematAccount   `json:"dematAccount"`
	AppliedIPOs  []AppliedIPORef `json:"appliedIPOs"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// UserProfile is the credential-stripped view of a User.
type UserProfile struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	Role         string          `json:"role"`
	Phone        string          `json:"phone"`
	PANCard      string          `json:"panCard"`
	BankAccount  *BankAccount    `json:"bankAccount"`
	UPIID        *string         `json:"upiId"`
	DematAccount *DematAccount   `json:"dematAccount"`
	AppliedIPOs  []AppliedIPORef `json:"appliedIPOs"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (u *User) Profile() *UserProfile {
	if u == nil {
		return nil
	}
	applied := u.AppliedIPOs
	if applied == nil {
		applied = []AppliedIPORef{}
	}
	return &UserProfile{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Phone:        u.Phone,
		PANCard:      u.PANCard,
		BankAccount:  u.BankAccount,
		UPIID:        u.UPIID,
		DematAccount: u.DematAccount,
		AppliedIPOs:  applied,
		CreatedAt:    u.CreatedAt,
	}
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.BankAccount != nil {
		b := *u.BankAccount
		c.BankAccount = &b
	}
	if u.DematAccount != nil {
		d := *u.DematAccount
		c.DematAccount = &d
	}
	if u.UPIID != nil {
		v := *u.UPIID
		c.UPIID = &v
	}
	if u.AppliedIPOs != nil {
		c.AppliedIPOs = append([]AppliedIPORef(nil), u.AppliedIPOs...)
	}
	return &c
}
