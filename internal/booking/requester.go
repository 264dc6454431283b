package booking

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/apperror"
)

var validate = validator.New()

// GuestContact identifies an unauthenticated requester.
type GuestContact struct {
	Name  string `validate:"required,max=200"`
	Email string `validate:"required,email"`
	Phone string `validate:"omitempty,min=6,max=32"`
}

// Requester is the identity an operation runs as. It is built explicitly by the caller.
//
// For creation exactly one of UserID and Guest must be set. For operations on an existing
// guest booking, GuestToken carries the access token issued when it was created.
type Requester struct {
	UserID     string
	IsAdmin    bool
	Guest      *GuestContact
	GuestToken string
}

func (r Requester) IsUser() bool {
	return r.UserID != ""
}

func (r Requester) validateForCreate() error {
	switch {
	case r.IsUser() && r.Guest != nil:
		return apperror.Detail(ErrInvalidInput, "provide either an authenticated user or guest contact details, not both")
	case !r.IsUser() && r.Guest == nil:
		return apperror.Detail(ErrInvalidInput, "guest contact details are required for unauthenticated bookings")
	case r.Guest != nil:
		r.Guest.Name = strings.TrimSpace(r.Guest.Name)
		r.Guest.Email = strings.TrimSpace(r.Guest.Email)
		r.Guest.Phone = strings.TrimSpace(r.Guest.Phone)
		if err := validate.Struct(r.Guest); err != nil {
			return apperror.Detail(ErrInvalidInput, "invalid guest contact: "+describe(err))
		}
	}
	return nil
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return strings.Join(fields, ", ")
}
