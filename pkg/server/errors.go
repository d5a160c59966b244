package server

import "github.com/NicolasHaas/mustangchat/pkg/model"

// SendError reports a datagram that could not be delivered to an endpoint.
type SendError struct {
	Endpoint model.Endpoint
	Err      error
}

func (e *SendError) Error() string {
	return "server: send to " + e.Endpoint.String() + ": " + e.Err.Error()
}

func (e *SendError) Unwrap() error { return e.Err }
