package cmd

import (
	"github.com/spf13/cobra"

	"solarcycle.GO/core/registry"
)

func registered() []*cobra.Command {
	if v, ok := registry.GlobalRegistry.GetGlobal(registry.KeyRegistryCmd); ok && v != nil {
		return v.([]*cobra.Command)
	}
	return nil
}

// taken reports whether name is a built-in command, an alias of one, or
// already registered.
func taken(name string) bool {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	for _, c := range registered() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

// Register adds an extension command. Call from init() in extension packages.
// Panics if the registry is locked or the name is taken.
func Register(c *cobra.Command) {
	if registry.GlobalRegistry.IsLocked(registry.KeyRegistryCmd) {
		panic("cmd/registry: locked (register only during init before Apply)")
	}
	if taken(c.Name()) {
		panic("cmd/registry: duplicate command " + c.Name())
	}
	registry.GlobalRegistry.SetGlobal(registry.KeyRegistryCmd, append(registered(), c))
}

// Apply adds the registered commands to root and locks the registry. Later
// calls do nothing.
func Apply() {
	if registry.GlobalRegistry.IsLocked(registry.KeyRegistryCmd) {
		return
	}
	for _, c := range registered() {
		rootCmd.AddCommand(c)
	}
	registry.GlobalRegistry.Lock(registry.KeyRegistryCmd)
}
