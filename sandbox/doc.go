// Package sandbox is a small arena shooter that runs as a Go-native engine.
//
// It speaks the same frame ABI as a compiled module: input arrives as a
// serialized snapshot in a simulated linear memory, the heap lives in that
// memory and grows it page by page, and output is either a serialized pull
// frame or push drawing through the platform. Importing the package
// registers two engines with the native backend:
//
//	sandbox       pull mode, byte colour channels
//	sandbox-push  push mode, unit colour channels
//
// The player is moved with the direction flags (action moves faster) and
// fires with the shoot flags. Enemies spawn at random positions away from
// the player and chase it; a bullet kills the enemy it hits.
package sandbox
