package service

import "errors"

// Business errors surfaced by the services. Expected conditions (no-op leave,
// unknown socket on unregister) do not produce errors at all.
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrRoomNotFound       = errors.New("room not found")
	ErrValidation         = errors.New("invalid input")
	ErrRoomAtCapacity     = errors.New("room is at capacity")
	ErrInternalServer     = errors.New("internal server error")
)
