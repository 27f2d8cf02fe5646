// Package config loads env-tagged configuration structs once per type.
// Adapters consume their config structs by value at construction; runtime
// changes go through each adapter's explicit Reconfigure method, never by
// mutating ambient state.
package config
