// Package input captures key events into the snapshot passed to each
// update call.
//
// Key handlers run on their own goroutines and write to a Latch; the frame
// driver reads the latch once per frame. A snapshot never mixes two writes,
// and a change made while an update is in flight is seen by the next one.
package input
