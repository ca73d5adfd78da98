package domain

import "errors"

var (
	ErrInvalidID              = errors.New("invalid id")
	ErrInvalidName            = errors.New("invalid name")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInvalidWeight          = errors.New("invalid weight")
	ErrInvalidPhotoRef        = errors.New("invalid photo reference")
	ErrInvalidVarianceReason  = errors.New("invalid variance reason")
	ErrInvalidSourceChannel   = errors.New("invalid source channel")
	ErrInvalidRole            = errors.New("invalid role")
	ErrInvalidEntityType      = errors.New("invalid entity type")
	ErrInvalidSeverity        = errors.New("invalid severity")
	ErrInvalidTimestamp       = errors.New("invalid timestamp")
	ErrInvalidVehicle         = errors.New("invalid vehicle or driver")
	ErrLotNotDispatchable     = errors.New("lot is not dispatchable")
	ErrLotNotInTransit        = errors.New("lot is not in transit")
	ErrTrailingPayloadData    = errors.New("trailing data after payload")
	ErrInvalidReportingPeriod = errors.New("invalid reporting period")
)
