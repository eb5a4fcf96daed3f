// Package tui presents frames in a terminal.
//
// Canvas is a render.Surface over a grid of terminal cells. Each cell shows
// two vertically stacked pixels with the upper half block glyph, so a
// 80x24 terminal gives an 80x48 pixel image of the engine's world.
//
// Model is a bubbletea model that steps a driver.Driver on every tick and
// feeds key presses to an input.Hold. Terminals report key presses but not
// releases, so a flag stays set until the key has not repeated for the hold
// duration.
package tui
