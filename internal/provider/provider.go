// Package provider abstracts the AI reasoning backends that produce debate
// perspectives. A provider takes a debate request and a role and returns a
// structured perspective; the engine never cares whether the provider is a
// local CLI subprocess, an editor bridge over HTTP, or text pasted in from
// an external session.
package provider

import (
	"context"

	"github.com/parleyhq/parley/internal/debate"
)

// Role tells a provider which side of the debate it argues.
type Role string

const (
	// RolePrimary analyzes the proposal on its merits.
	RolePrimary Role = "primary"
	// RoleCounter stress-tests the proposal, hunting for what the primary
	// analysis missed.
	RoleCounter Role = "counter"
)

// Provider produces debate perspectives.
type Provider interface {
	// Invoke runs the provider against the request in the given role.
	// The context bounds the invocation; a provider that cannot answer in
	// time returns an error wrapping ErrProviderUnavailable.
	Invoke(ctx context.Context, req debate.Request, role Role) (debate.Perspective, error)

	// IsAvailable probes whether the provider can currently respond.
	IsAvailable() bool

	// Identity returns the stable provider name recorded on perspectives.
	Identity() string
}
