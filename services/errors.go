package services

import "errors"

var (
	ErrValidationFailed = errors.New("validation failed")

	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrMatchRecordNotFound = errors.New("match record not found")

	ErrInvalidStage    = errors.New("operation not allowed in the current stage")
	ErrStageIncomplete = errors.New("current stage has not finished")
	ErrFinalStage      = errors.New("tournament is already in its final stage")

	ErrExportUnavailable = errors.New("history export storage is not configured")

	ErrAuthInvalidCredentials = errors.New("invalid organizer password")
	ErrAuthenticationFailed   = errors.New("authentication failed")
)
