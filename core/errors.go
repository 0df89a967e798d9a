package core

import (
	"errors"

	"github.com/lisuiheng/fastplayer/audio"
)

var (
	ErrNotRecording     = errors.New("not recording")
	ErrAlreadyRecording = errors.New("already recording")
	ErrNoRecording      = errors.New("no recording to play")
	ErrUnknownBackend   = audio.ErrUnknownBackend
	ErrInvalidConfig    = errors.New("invalid config")
)
