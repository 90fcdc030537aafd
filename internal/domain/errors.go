package domain

import "errors"

// Failure kinds recovered at the protocol boundary into per-request acks.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotHost         = errors.New("only the host can do that")
	ErrVotingNotActive = errors.New("voting not active")
	ErrRoomExists      = errors.New("room code already taken")
)
