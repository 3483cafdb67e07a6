// Package engine contains the Idle Economy Engine and the loops that drive it.
//
// ARCHITECTURAL RULE: renderers never touch engine state. They send commands
// (Click, Purchase, Prestige, ...) and react to events published on the EventLog.
package engine
