package session

import "errors"

var ErrWatching = errors.New("session watcher already running")
