package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxCategoryLength mirrors the width of the category column.
const MaxCategoryLength = 100

// UsernamePrefix is prepended to the external chat id to build the account key.
const UsernamePrefix = "tg_"

type (
	// Identity is the external chat identity an account is resolved from.
	Identity struct {
		ExternalID int64
		FirstName  string
		LastName   string
	}

	User struct {
		ID           int64
		Username     string
		FirstName    string
		LastName     string
		APITokenHash string
		CreatedAt    time.Time
	}

	Expense struct {
		ID        int64
		UserID    int64
		Amount    Money
		Category  string
		CreatedAt time.Time
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrEmptyCategory    = errors.New("empty category")
	ErrCategoryTooLong  = errors.New("category too long (max 100 characters)")
	ErrInvalidOwner     = errors.New("expense has no owner")
	ErrInvalidIdentity  = errors.New("invalid chat identity")
	ErrEmptyAPIToken    = errors.New("empty api token")
	ErrInvalidTimeRange = errors.New("range end must be after range start")
)

// Username derives the unique account key for the identity.
func (i Identity) Username() string {
	return UsernamePrefix + strconv.FormatInt(i.ExternalID, 10)
}

// NewUser builds the account record created on first contact.
func (i Identity) NewUser() User {
	return User{
		Username:  i.Username(),
		FirstName: i.FirstName,
		LastName:  i.LastName,
	}
}

func (i Identity) Validate() error {
	if i.ExternalID == 0 {
		return ErrInvalidIdentity
	}
	return nil
}

// ValidateCategory checks a free-text category label. No normalisation is applied.
func ValidateCategory(category string) error {
	if strings.TrimSpace(category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(category) > MaxCategoryLength {
		return ErrCategoryTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return ErrInvalidOwner
	}
	if err := ValidateCategory(e.Category); err != nil {
		return err
	}
	return e.Amount.Validate()
}
