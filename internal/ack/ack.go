// Package ack provides the tri-state acknowledgement returned by every
// handler invocation.
//
// The three states follow radio procedure words:
//   - wilco: received, will comply (the handler accepted and will act)
//   - unable: received, cannot comply (the handler rejected the handoff)
//   - roger: received, no commitment either way
//
// An Acknowledgement is a value: built once by a constructor, immutable
// afterward. Callers inspect it for logging and branching; correctness of the
// originating operation never depends on it.
package ack

// disposition is the tri-state commitment level.
type disposition int

const (
	dispositionRoger disposition = iota
	dispositionWilco
	dispositionUnable
)

// Acknowledgement is the result of a handler invocation.
// The zero value is a bare roger with no messages.
type Acknowledgement struct {
	disp     disposition
	errors   []string
	warnings []string
	info     []string
	debug    []string
}

// Option attaches messages to an Acknowledgement under construction.
type Option func(*Acknowledgement)

// WithErrors appends error messages.
func WithErrors(msgs ...string) Option {
	return func(a *Acknowledgement) { a.errors = append(a.errors, msgs...) }
}

// WithWarnings appends warning messages.
func WithWarnings(msgs ...string) Option {
	return func(a *Acknowledgement) { a.warnings = append(a.warnings, msgs...) }
}

// WithInfo appends informational messages.
func WithInfo(msgs ...string) Option {
	return func(a *Acknowledgement) { a.info = append(a.info, msgs...) }
}

// WithDebug appends debug messages.
func WithDebug(msgs ...string) Option {
	return func(a *Acknowledgement) { a.debug = append(a.debug, msgs...) }
}

// Wilco builds an acknowledgement that commits to act.
func Wilco(opts ...Option) Acknowledgement {
	return build(dispositionWilco, opts)
}

// Unable builds an acknowledgement that rejects the handoff.
func Unable(opts ...Option) Acknowledgement {
	return build(dispositionUnable, opts)
}

// Roger builds an acknowledgement of receipt without commitment.
func Roger(opts ...Option) Acknowledgement {
	return build(dispositionRoger, opts)
}

func build(d disposition, opts []Option) Acknowledgement {
	a := Acknowledgement{disp: d}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// WillComply reports the tri-state commitment: (true, true) for wilco,
// (false, true) for unable, and (_, false) for roger where no commitment
// was made.
func (a Acknowledgement) WillComply() (committed bool, set bool) {
	switch a.disp {
	case dispositionWilco:
		return true, true
	case dispositionUnable:
		return false, true
	default:
		return false, false
	}
}

// Accepted reports whether the handler committed to act.
func (a Acknowledgement) Accepted() bool {
	return a.disp == dispositionWilco
}

// Rejected reports whether the handler declined.
func (a Acknowledgement) Rejected() bool {
	return a.disp == dispositionUnable
}

// Errors returns a copy of the error messages.
func (a Acknowledgement) Errors() []string { return copyMessages(a.errors) }

// Warnings returns a copy of the warning messages.
func (a Acknowledgement) Warnings() []string { return copyMessages(a.warnings) }

// Info returns a copy of the informational messages.
func (a Acknowledgement) Info() []string { return copyMessages(a.info) }

// Debug returns a copy of the debug messages.
func (a Acknowledgement) Debug() []string { return copyMessages(a.debug) }

// String renders the disposition for logs.
func (a Acknowledgement) String() string {
	switch a.disp {
	case dispositionWilco:
		return "wilco"
	case dispositionUnable:
		return "unable"
	default:
		return "roger"
	}
}

func copyMessages(msgs []string) []string {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]string, len(msgs))
	copy(out, msgs)
	return out
}
