package service

import "errors"

// Domain errors. All of them are client errors.
var (
	ErrDuplicateRegistration = errors.New("a vehicle with this registration already exists")
	ErrNotFound              = errors.New("vehicle not found")
	ErrNoVehicles            = errors.New("no vehicles found")
	ErrMalformedRequest      = errors.New("malformed request")
	ErrPatchApplication      = errors.New("patch could not be applied")
)

// IsDomainError reports whether err is one of the domain errors above.
func IsDomainError(err error) bool {
	for _, target := range []error{ErrDuplicateRegistration, ErrNotFound, ErrNoVehicles, ErrMalformedRequest, ErrPatchApplication} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
