// Package corerr implements the core's error taxonomy and its
// panic/recover abort boundary (see the concurrency and resource
// model: aborting a compilation means discarding the process's state,
// there is no cancellation and no partial-result recovery mid-pass).
package corerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a compilation failure. It is part of the error's
// text; neither the CLI driver nor the server branches on it.
type Kind string

const (
	// Malformed input: an unresolved name, an arity mismatch, a
	// specialization name collision — anything the core treats as a
	// structural defect in its own input rather than a resource limit.
	KindMalformed Kind = "malformed"
	// Resource exhaustion: the symbol table or a worklist grew beyond
	// what the process could allocate.
	KindResource Kind = "resource"
	// Internal: an invariant this package itself is supposed to
	// maintain was violated (a pass produced IR outside its own closed
	// statement set, for instance). Always a bug in the core, never in
	// its input.
	KindInternal Kind = "internal"
)

// Error wraps a core failure with its Kind and the pass that raised
// it, and carries a stack trace via github.com/pkg/errors so a Recover
// boundary can log where the failure originated.
type Error struct {
	Kind  Kind
	Pass  string
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Pass, e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a malformed-input error, stamped with a stack trace
// at the call site.
func New(pass, format string, args ...any) *Error {
	return &Error{Kind: KindMalformed, Pass: pass, cause: errors.Errorf(format, args...)}
}

// Wrap attaches pass/kind context to an error from a lower layer,
// preserving its stack trace if it already has one.
func Wrap(pass string, kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Pass: pass, cause: errors.WithStack(err)}
}

// Internal constructs a KindInternal error: a closed-IR invariant was
// violated by this package's own code, not by its input.
func Internal(pass, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Pass: pass, cause: errors.Errorf(format, args...)}
}

// abortSignal is the panic payload Abort raises and Recover catches;
// an unrelated panic (a genuine bug elsewhere) passes through
// Recover untouched.
type abortSignal struct{ err *Error }

// Abort raises err as the compilation-ending panic. Passes call this
// instead of returning an error when continuing would observe a
// torn/partially-updated symbol table — see the shared-resources note
// in the concurrency model forbidding exactly that.
func Abort(err *Error) {
	panic(abortSignal{err: err})
}

// Recover is the single boundary that turns an Abort back into a
// normal error return; it belongs at the top of compile_core and
// nowhere else, since a pass is never expected to recover from another
// pass's abort mid-pipeline.
func Recover(dst *error) {
	r := recover()
	if r == nil {
		return
	}
	sig, ok := r.(abortSignal)
	if !ok {
		panic(r)
	}
	*dst = sig.err
}
