// Package extensions holds the independently loaded units that react to
// bus signals. Loading is driven by an explicit manifest of enabled
// extensions; there is no runtime directory scanning.
package extensions

import (
	"fmt"
	"log/slog"

	"kitbot/bus"
	"kitbot/contract"
	kiterrors "kitbot/errors"
	"kitbot/repositories"
)

// Env is what an extension gets to work with: the bus to subscribe on,
// the postponed store, and session lookup for sending replies.
type Env struct {
	Log      *slog.Logger
	Bus      *bus.Bus
	Store    repositories.IPostponedRepository
	Sessions contract.ISessionRegistry
}

// Extension is one loadable unit. Init is called once at startup with the
// extension's manifest config and is expected to subscribe to whatever
// signals it cares about.
type Extension interface {
	Name() string
	Init(env Env, cfg map[string]string) error
}

// Manifest is one enabled-extension entry from the configuration.
type Manifest struct {
	Name   string            `yaml:"name" validate:"required"`
	Config map[string]string `yaml:"config"`
}

// Constructor builds a fresh, uninitialized extension.
type Constructor func() Extension

// Load initializes every manifest entry against the available set. An
// unknown name is a startup error: a typo in the manifest should not
// silently disable an extension.
func Load(env Env, available map[string]Constructor, manifest []Manifest) error {
	for _, entry := range manifest {
		construct, ok := available[entry.Name]
		if !ok {
			return fmt.Errorf("%w: %s", kiterrors.ErrUnknownExtension, entry.Name)
		}
		ext := construct()
		if err := ext.Init(env, entry.Config); err != nil {
			return fmt.Errorf("init extension %s: %w", entry.Name, err)
		}
		env.Log.Info("Loaded extension", "name", ext.Name())
	}
	return nil
}
