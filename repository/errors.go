package repository

import "errors"

var (
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrPlaylistExists   = errors.New("playlist already exists")
	ErrSongNotFound     = errors.New("song not found")
	ErrDuplicateSong    = errors.New("song already in playlist")
)
