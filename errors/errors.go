package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrNotJoined        = fmt.Errorf("room not joined")
	ErrTransportClosed  = fmt.Errorf("transport closed")
	ErrUnknownExtension = fmt.Errorf("unknown extension")
	ErrUnknownRoom      = fmt.Errorf("unknown room")
)
