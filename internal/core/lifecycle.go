package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Configurable is implemented by modules that accept YAML configuration.
// Called after instantiation and before Provision, only when the config
// file has a section for the module.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner is implemented by modules that need setup after
// instantiation: defaults, connections, and service registration.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator is implemented by modules that can check their configuration.
// Called after Provision. Validate must not have side effects.
type Validator interface {
	Validate() error
}

// Starter is implemented by modules that run background work. Called after
// every module is provisioned and validated, in load order.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that hold resources. Called in reverse
// start order during shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}
