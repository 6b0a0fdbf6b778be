package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// kindError is a specific error that still matches its broad category with errors.Is.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

var (
	ErrLeagueNotFound   error = &kindError{kind: ErrNotFound, msg: "league not found"}
	ErrEpisodeNotFound  error = &kindError{kind: ErrNotFound, msg: "episode not found"}
	ErrCastawayNotFound error = &kindError{kind: ErrNotFound, msg: "castaway not found"}
	ErrJobNotFound      error = &kindError{kind: ErrNotFound, msg: "job not found"}

	ErrNotYourTurn      error = &kindError{kind: ErrConflict, msg: "not your turn"}
	ErrCastawayTaken    error = &kindError{kind: ErrConflict, msg: "castaway already taken"}
	ErrAlreadyFinalized error = &kindError{kind: ErrConflict, msg: "episode already finalized"}
	ErrDraftNotOpen     error = &kindError{kind: ErrConflict, msg: "draft is not in progress"}
	ErrDraftStarted     error = &kindError{kind: ErrConflict, msg: "draft already started"}
)
