// Package memory provides in-memory implementations of driven port interfaces.
// They hold nothing across process restarts and are used by watch mode and tests.
package memory
