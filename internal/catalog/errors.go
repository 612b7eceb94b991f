package catalog

import "errors"

var (
	// ErrPageNumberUnresolvable means no printed page number in the section's
	// range was found on a page; the page is skipped.
	ErrPageNumberUnresolvable = errors.New("printed page number unresolvable")
	// ErrNoTitleFound means a page carries no program title. This is the
	// normal outcome for most pages.
	ErrNoTitleFound = errors.New("no program title found")
)
