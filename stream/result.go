package stream

import (
	"fmt"
	"strconv"
	"strings"
)

// Result framing on the result topic:
//
//	<timestamp_ns>/<channel>/<subject>/<scope>/<outcome>/<detail>
//
// detail is free-form and may itself contain slashes or newlines; readers
// must treat everything after the fifth separator as one field.

type Channel string

const (
	ChannelCommand Channel = "COMMAND"
	ChannelStatus  Channel = "STATUS"
	ChannelError   Channel = "ERROR"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// ScopeAll marks results that are not scoped to a single axis.
const ScopeAll = "ALL"

// Result is one framed message for the result topic.
type Result struct {
	TimestampNS uint64
	Channel     Channel
	Subject     string
	Scope       string
	Outcome     Outcome
	Detail      string
}

// Encode renders the wire form.
func (r Result) Encode() []byte {
	var b strings.Builder
	b.Grow(32 + len(r.Subject) + len(r.Scope) + len(r.Detail))
	b.WriteString(strconv.FormatUint(r.TimestampNS, 10))
	b.WriteByte('/')
	b.WriteString(string(r.Channel))
	b.WriteByte('/')
	b.WriteString(r.Subject)
	b.WriteByte('/')
	b.WriteString(r.Scope)
	b.WriteByte('/')
	b.WriteString(string(r.Outcome))
	b.WriteByte('/')
	b.WriteString(r.Detail)
	return []byte(b.String())
}

func success(ts uint64, subject, scope, format string, args ...interface{}) Result {
	return Result{
		TimestampNS: ts,
		Channel:     ChannelCommand,
		Subject:     subject,
		Scope:       scope,
		Outcome:     OutcomeSuccess,
		Detail:      fmt.Sprintf(format, args...),
	}
}

func failed(ts uint64, subject, scope, format string, args ...interface{}) Result {
	return Result{
		TimestampNS: ts,
		Channel:     ChannelCommand,
		Subject:     subject,
		Scope:       scope,
		Outcome:     OutcomeFailed,
		Detail:      fmt.Sprintf(format, args...),
	}
}
