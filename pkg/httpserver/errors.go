package httpserver

import "errors"

var (
	ErrStart                = errors.New("httpserver: failed to start")
	ErrShutdown             = errors.New("httpserver: failed to shutdown")
	ErrServerAlreadyRunning = errors.New("httpserver: server already running")
)
