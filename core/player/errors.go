package player

import "errors"

var (
	ErrNotFound       = errors.New("audio file not found")
	ErrNotConnected   = errors.New("not connected to voice channel")
	ErrCommandTimeout = errors.New("operation timed out")
	ErrEmptyQueue     = errors.New("no playlist is currently playing")
	ErrNothingPlaying = errors.New("no audio currently playing")
	ErrBotNotReady    = errors.New("bot is not connected to discord")
	ErrInvalidChannel = errors.New("invalid voice channel id")
	// ErrNoChannel is returned when a playlist is started without a
	// connection and no channel is configured.
	ErrNoChannel = errors.New("discord channel not configured")
)
