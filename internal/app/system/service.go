package system

import "context"

// Service is a component with an explicit lifecycle. The manager starts
// registered services in order and stops them in reverse, so a service may
// assume everything registered before it is already running.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
