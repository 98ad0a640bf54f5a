package gcd

import "errors"

var (
	// the portal refused the login
	ErrAuthentication = errors.New("authentication failed")
	// a page is missing the markup the workflow depends on
	ErrParse = errors.New("unexpected page structure")
	// an exchange could not complete or returned a non-2xx status
	ErrTransport = errors.New("http exchange failed")
	// the dump could not be written to disk
	ErrStorage = errors.New("storage failed")
)
