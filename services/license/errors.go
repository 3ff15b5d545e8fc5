package license

import "errors"

var (
	ErrNegativeSeats          = errors.New("seats must not be negative")
	ErrMissingTenant          = errors.New("tenant id is required")
	ErrLicenseNotFound        = errors.New("license not found")
	ErrLicenseNotAvailable    = errors.New("license is not available")
	ErrLicenseNotAssigned     = errors.New("license is not assigned")
	ErrNoAvailableLicense     = errors.New("no available license")
	ErrPractitionerHasLicense = errors.New("practitioner already holds a license")
)
