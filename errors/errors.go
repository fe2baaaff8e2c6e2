package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrInvalidPayload     = fmt.Errorf("invalid event payload")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrEmptyMonographs    = fmt.Errorf("no monographs have been found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrMalformedHash      = fmt.Errorf("malformed password hash")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrReplyTimeout       = fmt.Errorf("assistant did not reply in time")
	ErrUnsupportedMedia   = fmt.Errorf("unsupported media type")
	ErrEmptyAnswer        = fmt.Errorf("assistant produced an empty answer")
	ErrNoAgentAvailable   = fmt.Errorf("no agent available for this intent")
	ErrChannelFull        = fmt.Errorf("command channel is full")
)
