package endpoint

import (
	"gocardgate/indicator"
	"gocardgate/report"
	"gocardgate/session"
)

// Interpret maps a session outcome to the pattern to show and the report
// event describing it. Every failure kind shows the error pattern.
func Interpret(o session.Outcome) (indicator.Pattern, report.Event) {
	ev := report.Event{Kind: report.KindAccess, Outcome: o.Kind.String()}

	switch o.Kind {
	case session.Authorized:
		return indicator.PatternAuthorized, ev
	case session.Denied:
		return indicator.PatternDenied, ev
	case session.Timeout:
		ev.Reason = "no response from authorization server"
	case session.ConnectionFailed:
		ev.Reason = "could not reach authorization server"
	default:
		ev.Reason = "unexpected response"
		ev.Detail = o.Text
		return indicator.PatternError, ev
	}
	if o.Err != nil {
		ev.Detail = o.Err.Error()
	}
	return indicator.PatternError, ev
}
