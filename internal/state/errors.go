package state

import (
	"errors"

	"github.com/mmynk/splitbaba/internal/ledger"
)

var (
	ErrNotSignedIn        = errors.New("not signed in")
	ErrNoHousehold        = errors.New("not a member of any household")
	ErrAlreadyInHousehold = errors.New("already a member of a household")
	ErrSuperseded         = errors.New("superseded by a newer update")

	// ErrNotRefreshed wraps a refresh failure after a record was saved.
	// The write succeeded and must not be retried.
	ErrNotRefreshed = errors.New("saved, but refreshing the household failed")

	ErrSameMember       = errors.New("payer and payee must be different members")
	ErrUnknownMember    = errors.New("not a member of this household")
	ErrEmptyDescription = errors.New("description is required")
	ErrEmptyName        = errors.New("household name is required")
)

// IsValidation reports whether err rejects the caller's input, as opposed to
// a session precondition or a data service failure.
func IsValidation(err error) bool {
	for _, target := range []error{ledger.ErrInvalidAmount, ErrSameMember, ErrUnknownMember, ErrEmptyDescription, ErrEmptyName} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
