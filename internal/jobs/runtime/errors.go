package runtime

import "errors"

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. A job that fails with it is
// not claimed again regardless of remaining attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Terminal reports whether failing with err ends the job for good.
func (c *Context) Terminal(err error) bool {
	return c.FinalAttempt() || IsPermanent(err)
}
