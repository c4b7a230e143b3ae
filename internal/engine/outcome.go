package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OutcomeKind tags the single terminal result of one external task.
type OutcomeKind string

const (
	KindSuccess        OutcomeKind = "success"
	KindDomainError    OutcomeKind = "domain_error"
	KindProcessFailure OutcomeKind = "process_failure"
	KindDecodeFailure  OutcomeKind = "decode_failure"
	KindStartFailure   OutcomeKind = "start_failure"
	KindTimedOut       OutcomeKind = "timed_out"
)

// Outcome is the normalized result of running one external task. Exactly one
// is produced per task; which fields are meaningful depends on Kind.
type Outcome struct {
	Kind OutcomeKind

	// Payload is the decoded stdout document. Success only.
	Payload map[string]any

	// Message carries the engine-reported error (KindDomainError) or the
	// spawn failure reason (KindStartFailure).
	Message string

	// Suggestions are remediation hints the engine attached to a domain
	// error, forwarded as-is.
	Suggestions []string

	// ExitCode is set for KindProcessFailure. -1 means killed by signal.
	ExitCode int

	// Excerpt is a bounded slice of diagnostics: the tail of stderr for
	// process failures and timeouts, the head of stdout for decode failures.
	Excerpt string

	// ParseErr describes why stdout could not be decoded. KindDecodeFailure only.
	ParseErr string

	// Truncated records that an output stream hit the collection cap.
	Truncated bool
}

// excerptBytes bounds how much stderr/stdout ever leaves the collector with
// an outcome. Full buffers stay inside the engine package.
const excerptBytes = 2048

func successOutcome(payload map[string]any) Outcome {
	return Outcome{Kind: KindSuccess, Payload: payload}
}

func domainErrorOutcome(message string, suggestions []string) Outcome {
	return Outcome{Kind: KindDomainError, Message: message, Suggestions: suggestions}
}

func processFailureOutcome(exitCode int, stderr []byte) Outcome {
	return Outcome{Kind: KindProcessFailure, ExitCode: exitCode, Excerpt: excerptTail(stderr)}
}

func decodeFailureOutcome(stdout []byte, cause error) Outcome {
	return Outcome{Kind: KindDecodeFailure, Excerpt: excerptHead(stdout), ParseErr: cause.Error()}
}

func startFailureOutcome(reason error) Outcome {
	return Outcome{Kind: KindStartFailure, Message: reason.Error()}
}

func timedOutOutcome(stderr []byte) Outcome {
	return Outcome{Kind: KindTimedOut, Excerpt: excerptTail(stderr)}
}

// Decode normalizes a finished task into an Outcome. Exit code zero is the
// only success signal; a non-zero code wins over anything on stdout. On exit
// zero the stdout buffer must hold one JSON object: an "error" field marks an
// engine-reported domain error, otherwise every field named in required must
// be present for the payload to count as a success document.
func Decode(exitCode int, stdout, stderr []byte, required ...string) Outcome {
	if exitCode != 0 {
		return processFailureOutcome(exitCode, stderr)
	}

	raw := bytes.TrimSpace(stdout)
	if len(raw) == 0 {
		return decodeFailureOutcome(raw, fmt.Errorf("empty output"))
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return decodeFailureOutcome(raw, err)
	}
	if payload == nil {
		return decodeFailureOutcome(raw, fmt.Errorf("output is not a JSON object"))
	}

	if v, ok := payload["error"]; ok {
		return domainErrorOutcome(stringify(v), suggestionList(payload["suggestions"]))
	}

	for _, field := range required {
		if _, ok := payload[field]; !ok {
			return decodeFailureOutcome(raw, fmt.Errorf("missing %q field", field))
		}
	}
	return successOutcome(payload)
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func suggestionList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, stringify(item))
	}
	return out
}

func excerptHead(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= excerptBytes {
		return s
	}
	return s[:excerptBytes] + "..."
}

func excerptTail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= excerptBytes {
		return s
	}
	return "..." + s[len(s)-excerptBytes:]
}
