package csrf

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog"
)

// Event describes one terminal decision. Before is the pair read from the
// request, After the pair in effect once the decision is applied.
type Event struct {
	Method string
	Path   string
	Decision
}

// DiagnosticsFunc observes decisions. It cannot influence them.
type DiagnosticsFunc func(Event)

// MultiSink fans an event out to every non-nil sink. It returns nil when
// there is nothing to call.
func MultiSink(sinks ...DiagnosticsFunc) DiagnosticsFunc {
	var live []DiagnosticsFunc
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(ev Event) {
		for _, s := range live {
			s(ev)
		}
	}
}

// LogSink writes each decision as a debug-level "csrf_decision" event.
// Secrets are logged as a short fingerprint only.
func LogSink(l zerolog.Logger) DiagnosticsFunc {
	return func(ev Event) {
		evt := l.Debug().
			Str("method", ev.Method).
			Str("path", ev.Path).
			Str("outcome", ev.Outcome.String()).
			Str("state", ev.State.String()).
			Str("exemption", ev.Exemption.String()).
			Bool("rotated", ev.Rotated).
			Str("secret_before", fingerprint(ev.Before.Secret)).
			Str("secret_after", fingerprint(ev.After.Secret)).
			Str("token_before", ev.Before.Token.String()).
			Str("token_after", ev.After.Token.String())
		if ev.Reason != "" {
			evt = evt.Str("reason", string(ev.Reason))
		}
		evt.Msg("csrf_decision")
	}
}

func fingerprint(s Optional[Secret]) string {
	v, ok := s.Get()
	if !ok {
		return "<absent>"
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:4])
}
