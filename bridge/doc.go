// Package bridge implements the capabilities an engine calls back into
// during init and update: a random source, diagnostic logging, user-visible
// alerts, fatal throws, and push-model drawing.
//
// Drawing is recorded, not performed: the runtime binds a render.Queue for
// the duration of one push update and drains it after the call returns.
// Drawing with no queue bound is a mode conflict and aborts the call.
//
// A Platform serves one engine instance and is not safe for concurrent use.
package bridge
