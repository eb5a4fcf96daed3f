// Package web presents frames in a browser.
//
// Server is a driver.Presenter. Each presented frame is converted to
// surface rectangles by a render.Consumer and broadcast over websocket to
// every connected page as one JSON message; the page only fills
// rectangles on a canvas. Key events travel the other way and set flags on
// a shared input.Latch. A client that disconnects releases the keys it
// held.
//
// Messages from the server:
//
//	{"type":"hello","id":"...","width":960,"height":540}
//	{"type":"frame","seq":7,"rects":[{"x":10,"y":480,"w":40,"h":40,"c":"#ff0000"}]}
//
// Messages from the page:
//
//	{"type":"key","code":"KeyW","down":true}
//	{"type":"reset"}
package web
