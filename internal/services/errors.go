package services

import "errors"

var (
	ErrUnauthorized      = errors.New("role is not allowed to perform this action")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyStarted    = errors.New("cleaning already started by someone else")
	ErrReasonRequired    = errors.New("a reason is required")
	ErrDraftInactive     = errors.New("drafts are only kept during the actor's own cleaning")
	ErrNoSchedule        = errors.New("no schedule loaded")
)
