package auth

import "errors"

var (
	// ErrInvalidInput is returned by Hash when the password is empty after truncation.
	ErrInvalidInput = errors.New("password must not be empty")
	// ErrInvalidToken covers every token failure: bad signature, wrong
	// algorithm, malformed payload, missing subject, expiry.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCredentials is returned for both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("incorrect username or password")
	// ErrUnauthenticated means no usable identity could be resolved from the request.
	ErrUnauthenticated = errors.New("could not validate credentials")
	// ErrAccountDisabled means the token resolved to a deactivated account.
	ErrAccountDisabled = errors.New("inactive user")
	// ErrForbidden matches every *ForbiddenError via errors.Is.
	ErrForbidden = errors.New("not enough permissions")
	// ErrTooManyAttempts is returned while a username is locked out of login.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// ForbiddenError is returned by guards. Reason is safe to show to the caller.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return ErrForbidden.Error()
	}
	return e.Reason
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

func forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}
