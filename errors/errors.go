package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the frame protocol the error occurred
type Phase string

const (
	PhaseLoad        Phase = "load"        // module compile and inspection
	PhaseInstantiate Phase = "instantiate" // instance creation and host binding
	PhaseInit        Phase = "init"        // engine init()
	PhaseUpdate      Phase = "update"      // engine update()
	PhaseEncode      Phase = "encode"      // host to engine memory
	PhaseDecode      Phase = "decode"      // engine memory to host
	PhaseAlloc       Phase = "alloc"       // allocate/release primitives
	PhaseBridge      Phase = "bridge"      // engine calling back into the host
	PhaseRender      Phase = "render"      // render output consumption
	PhaseDrive       Phase = "drive"       // frame scheduling
	PhaseConfig      Phase = "config"      // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindNotInitialized  Kind = "not_initialized"
	KindDecode          Kind = "decode"
	KindAllocation      Kind = "allocation"
	KindEngineThrow     Kind = "engine_throw"
	KindTrap            Kind = "trap"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindInvalidUTF8     Kind = "invalid_utf8"
	KindFieldMissing    Kind = "field_missing"
	KindFieldUnknown    Kind = "field_unknown"
	KindInvalidData     Kind = "invalid_data"
	KindStaleView       Kind = "stale_view"
	KindDoubleRelease   Kind = "double_release"
	KindUseAfterRelease Kind = "use_after_release"
	KindModeConflict    Kind = "mode_conflict"
	KindProtocol        Kind = "protocol"
	KindMissingExport   Kind = "missing_export"
	KindNotFound        Kind = "not_found"
	KindInvalidInput    Kind = "invalid_input"
	KindHalted          Kind = "halted"
	KindClosed          Kind = "closed"
	KindUnsupported     Kind = "unsupported"
	KindInstantiation   Kind = "instantiation"
	KindAlreadyInit     Kind = "already_initialized"
)

// Error is the structured error type used throughout the host
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasKind reports whether any *Error in err's chain has the given kind.
func HasKind(err error, kind Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsFrameFatal reports whether err leaves the engine in an unknown state.
// The frame driver must stop scheduling after such an error.
func IsFrameFatal(err error) bool {
	switch KindOf(err) {
	case KindDecode, KindInvalidUTF8, KindFieldMissing, KindFieldUnknown, KindInvalidData,
		KindOutOfBounds, KindEngineThrow, KindTrap, KindProtocol, KindModeConflict:
		return true
	}
	return IsSessionFatal(err)
}

// IsSessionFatal reports whether err makes the whole session unrecoverable.
func IsSessionFatal(err error) bool {
	return HasKind(err, KindAllocation)
}

// Convenience constructors for common error patterns

// NotInitialized creates a not-initialized error for calls made before init()
func NotInitialized(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", what),
	}
}

// Decode creates a decode error for malformed data crossing the boundary
func Decode(phase Phase, path []string, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDecode,
		Path:   path,
		Detail: detail,
		Cause:  cause,
	}
}

// InvalidUTF8 creates an invalid UTF-8 error
func InvalidUTF8(phase Phase, path []string, data []byte) *Error {
	preview := data
	if len(preview) > 32 {
		preview = preview[:32]
	}
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidUTF8,
		Path:   path,
		Detail: fmt.Sprintf("invalid UTF-8 sequence: %x", preview),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes", size),
		Cause:  cause,
	}
}

// EngineThrow creates an error for a fatal condition signalled by the engine
func EngineThrow(phase Phase, message string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindEngineThrow,
		Detail: demangleRust(message),
		Value:  message,
	}
}

// Trap creates an error for a wasm trap raised during an engine call
func Trap(phase Phase, export string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Detail: fmt.Sprintf("call %s", export),
		Cause:  cause,
	}
}

// FieldMissing creates a missing field error
func FieldMissing(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldMissing,
		Path:   path,
		Detail: fmt.Sprintf("required field %q not found", fieldName),
	}
}

// FieldUnknown creates an unknown field error
func FieldUnknown(phase Phase, path []string, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFieldUnknown,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// OutOfBounds creates an out of bounds error for a memory range
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) out of bounds (memory size %d)", offset, uint64(offset)+uint64(length), size),
		Value:  offset,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// StaleView creates an error for a memory view read after invalidation
func StaleView(width string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindStaleView,
		Detail: fmt.Sprintf("%s view used after memory invalidation", width),
	}
}

// DoubleRelease creates an error for a buffer released twice
func DoubleRelease(ptr, length uint32) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindDoubleRelease,
		Detail: fmt.Sprintf("buffer (%d, %d) already released", ptr, length),
		Value:  ptr,
	}
}

// UseAfterRelease creates an error for a buffer read after release
func UseAfterRelease(ptr, length uint32) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindUseAfterRelease,
		Detail: fmt.Sprintf("buffer (%d, %d) read after release", ptr, length),
		Value:  ptr,
	}
}

// ModeConflict creates an error for mixing pull output with push drawing
func ModeConflict(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindModeConflict,
		Detail: detail,
	}
}

// Protocol creates an error for a violated call ordering rule
func Protocol(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocol,
		Detail: detail,
	}
}

// Halted wraps the error that stopped the frame driver
func Halted(cause error) *Error {
	return &Error{
		Phase:  PhaseDrive,
		Kind:   KindHalted,
		Detail: "frame driver halted",
		Cause:  cause,
	}
}

// Closed creates an error for use of a closed instance
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseInstantiate,
		Kind:   KindInstantiation,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExportsError is returned when a module lacks exports the frame ABI requires
type MissingExportsError struct {
	Exports []string
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[load] missing_export: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d required export(s):", len(e.Exports)))
	for _, name := range e.Exports {
		b.WriteString("\n  - ")
		b.WriteString(name)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	_, ok := target.(*MissingExportsError)
	return ok
}

// demangleRust attempts to extract a readable path from a mangled Rust symbol
// embedded in an engine panic message.
func demangleRust(msg string) string {
	start := strings.Index(msg, "_ZN")
	if start < 0 {
		return msg
	}
	end := strings.IndexAny(msg[start:], " \t\n")
	if end < 0 {
		end = len(msg) - start
	}
	name := msg[start : start+end]

	s := name[3:]
	var parts []string

	for len(s) > 0 && s[0] != 'E' {
		lenEnd := 0
		for lenEnd < len(s) && s[lenEnd] >= '0' && s[lenEnd] <= '9' {
			lenEnd++
		}
		if lenEnd == 0 {
			break
		}

		length := 0
		for i := 0; i < lenEnd; i++ {
			length = length*10 + int(s[i]-'0')
		}
		s = s[lenEnd:]

		if length > len(s) {
			break
		}

		part := s[:length]
		s = s[length:]

		// hash suffixes are 17 chars: 'h' + 16 hex digits
		if len(part) == 17 && part[0] == 'h' && isHex(part[1:]) {
			continue
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 || len(s) == 0 || s[0] != 'E' {
		return msg
	}

	return msg[:start] + strings.Join(parts, "::") + s[1:] + msg[start+end:]
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
