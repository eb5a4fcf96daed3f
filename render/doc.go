// Package render turns engine-space draw commands into fill operations on
// a Surface.
//
// Engine space has its vertical axis pointing up; surfaces have it pointing
// down from a fixed height H. A command (left, top, right, bottom) becomes
// the surface rectangle
//
//	x = left
//	y = H - top
//	w = right - left
//	h = top - bottom
//
// Colour channels are converted per convention: byte channels are clamped
// and floored into 0-255, unit channels are scaled by 255 and floored.
//
// Pull frames are handed to Consumer.Present. Push frames are collected in
// a Queue during the engine call and presented after it returns.
package render
