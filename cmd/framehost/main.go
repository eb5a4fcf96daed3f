// Command framehost runs a frame engine in a terminal, a browser or
// headless.
//
//	framehost run                      # sandbox engine in the terminal
//	framehost run --engine game.wasm --surface web
//	framehost snapshot --frames 120 --keys up_key -o arena.png
//	framehost inspect --engine game.wasm
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
