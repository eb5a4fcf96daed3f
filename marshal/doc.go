// Package marshal moves values between the host and engine linear memory.
//
// A Marshaller is the explicit context object for one engine instance. It
// caches a byte-addressable View and a word-addressable WordView over the
// engine's memory. Any allocation invalidates both; the runtime also
// invalidates after every call into the engine, because the engine may grow
// its memory internally. Every accessor checks view validity before
// dereferencing, so a stale view yields a KindStaleView error instead of
// silently reading an orphaned buffer.
//
// Buffers whose ownership crosses to the host are represented by *Buffer
// and must be released exactly once. Scope releases everything acquired
// inside it on every exit path:
//
//	err := m.Scope(func(s *marshal.Scope) error {
//	    in, err := s.EncodeText(payload)
//	    if err != nil {
//	        return err
//	    }
//	    return call(in.Ptr(), in.Len())
//	})
package marshal
