package connector

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/log"
)

// ErrUnknownKind is returned by Resolve for a configuration whose kind has no
// registered factory.
var ErrUnknownKind = errors.New("unknown connector kind")

// Factory builds a connector for one configuration.
type Factory func(conf inventory.ConnectorConf) (Connector, error)

// Registry turns stored connector configurations into live connectors.
// Connectors are cached per configuration ID.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	cache     map[int64]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		cache:     make(map[int64]Connector),
	}
}

// NewDefaultRegistry registers the Ansible kind, picking the local or SSH
// runner from each configuration's transport.
func NewDefaultRegistry(cfg config.AnsibleConfig) *Registry {
	r := NewRegistry()
	opts := AnsibleOptions{
		AdhocBin:       cfg.AdhocBin,
		PlaybookBin:    cfg.PlaybookBin,
		MaxOutputBytes: cfg.MaxOutputBytes,
	}
	r.Register(inventory.KindAnsible, func(conf inventory.ConnectorConf) (Connector, error) {
		logger := log.WithConnector(conf.Name)
		switch conf.Transport {
		case "", inventory.TransportLocal:
			return NewAnsible(conf, &LocalRunner{Grace: cfg.TerminationGrace, Logger: logger}, opts), nil
		case inventory.TransportSSH:
			runner, err := NewSSHRunner(conf, cfg.TerminationGrace, logger)
			if err != nil {
				return nil, err
			}
			return NewAnsible(conf, runner, opts), nil
		default:
			return nil, fmt.Errorf("connector %q: unknown transport %q", conf.Name, conf.Transport)
		}
	})
	return r
}

// Register installs the factory for kind, replacing any previous one.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Resolve returns the connector for conf, building it on first use.
func (r *Registry) Resolve(conf inventory.ConnectorConf) (Connector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache[conf.ID]; ok {
		return c, nil
	}
	f, ok := r.factories[conf.Kind]
	if !ok {
		return nil, fmt.Errorf("connector %q: %w %q", conf.Name, ErrUnknownKind, conf.Kind)
	}
	c, err := f(conf)
	if err != nil {
		return nil, err
	}
	r.cache[conf.ID] = c
	return c, nil
}

// Forget drops cached connectors, e.g. after an inventory import changed
// their configuration.
func (r *Registry) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[int64]Connector)
}
