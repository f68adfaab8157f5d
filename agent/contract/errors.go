package contract

import "errors"

var (
	ErrConfiguration     = errors.New("agent configuration error")
	ErrAgentNotCallable  = errors.New("agent is not callable")
	ErrEmptyResult       = errors.New("empty result")
	ErrAllAttemptsFailed = errors.New("all attempts failed")
	ErrBookkeeping       = errors.New("routing bookkeeping failed")
	ErrRecordStore       = errors.New("record store request failed")
	ErrRecordNotFound    = errors.New("record not found")
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrValidation        = errors.New("validation failed")
)
