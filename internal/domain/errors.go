package domain

import "errors"

var (
	ErrDuplicateNoiseBox   = errors.New("noise-box already exists")
	ErrNoiseBoxNotFound    = errors.New("noise-box not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyConnected    = errors.New("connection already attached to a noise-box")
	ErrInvalidNoiseBoxID   = errors.New("invalid noise-box id")
)
