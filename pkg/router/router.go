// Package router implements the Event Router (§4.2): it consumes inbound
// submission and problem-package events, resolves the event-type through a
// fixed precedence, unwraps one level of envelope, and dispatches to the
// Registry or Job Queue via injected handler functions.
package router

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/log"
	"github.com/cuemby/judgehost/pkg/retry"
)

// Event-type canonical names and their recognised aliases (§6).
const (
	TypeSubmissionCreated = "judge.submission.created"
	TypeProblemCreated    = "judge.problem.created"
)

var aliases = map[string]string{
	TypeSubmissionCreated: TypeSubmissionCreated,
	"submission":          TypeSubmissionCreated,

	TypeProblemCreated:       TypeProblemCreated,
	"judge.problem":          TypeProblemCreated,
	"judge.package":          TypeProblemCreated,
	"judge.package.created":  TypeProblemCreated,
}

// InboundEvent is one message received off the bus, with envelope metadata
// already separated from the payload.
type InboundEvent struct {
	RoutingKey string
	Headers    map[string]string
	Payload    map[string]any
}

// SubmissionPayload is the resolved, unwrapped submission event payload.
type SubmissionPayload struct {
	SubmissionID string
	ProblemID    string
	ArchiveURL   string
	TeamID       string
	UserID       string
	RunOptions   map[string]any
}

// ProblemPayload is the resolved, unwrapped problem-package event payload.
type ProblemPayload struct {
	ProblemID  string
	ArchiveURL string
	Checksum   string
	Metadata   map[string]any
}

// SubmissionHandler enqueues a resolved submission (dispatches to the Job Queue).
type SubmissionHandler func(ctx context.Context, payload SubmissionPayload) error

// ProblemHandler ingests a resolved problem package (dispatches to the Registry).
type ProblemHandler func(ctx context.Context, payload ProblemPayload) error

// Config configures a Router.
type Config struct {
	// InstanceID identifies this process for own-origin deduplication
	// against the x-origin header.
	InstanceID string

	// PackageBaseURL is joined with /submission/{id}/package or
	// /problem/{id}/package when an event carries a package_path instead
	// of an explicit archive_url (§4.2).
	PackageBaseURL string

	// Retry governs inbound problem-package processing retries
	// (§4.2): exponential backoff, network-like errors only.
	Retry retry.Config
}

// DefaultRetryPolicy returns the §4.2 default: 1s initial delay, 30s cap,
// 5 attempts, retryable on network-like failures only.
func DefaultRetryPolicy() retry.Config {
	return retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
		Retryable:    isRetryableNetworkError,
	}
}

// Router dispatches inbound events to the Registry or Job Queue.
type Router struct {
	cfg          Config
	onSubmission SubmissionHandler
	onProblem    ProblemHandler
	logger       zerolog.Logger
}

// New constructs a Router.
func New(cfg Config, onSubmission SubmissionHandler, onProblem ProblemHandler) *Router {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Router{
		cfg:          cfg,
		onSubmission: onSubmission,
		onProblem:    onProblem,
		logger:       log.WithComponent("router"),
	}
}

// Requeue signals that an inbound event should be released back to the bus
// for a cooperating consumer to claim, rather than acknowledged.
var Requeue = fmt.Errorf("requeue: own-origin event")

// Route resolves an inbound event's type and dispatches it. It returns
// Requeue for duplicate own-origin events; any other non-nil error
// indicates the event should be nacked (not retried by the router itself,
// except for problem-package ingest, which retries per cfg.Retry).
func (r *Router) Route(ctx context.Context, ev InboundEvent) error {
	if ev.Headers["x-origin"] != "" && ev.Headers["x-origin"] == r.cfg.InstanceID {
		return Requeue
	}

	eventType, ok := resolveEventType(ev)
	if !ok {
		return jherrors.InvalidInput("event_type", "could not resolve a recognised event type")
	}

	payload := unwrap(ev.Payload)

	switch eventType {
	case TypeSubmissionCreated:
		sub, err := r.parseSubmission(payload)
		if err != nil {
			return err
		}
		return r.onSubmission(ctx, sub)
	case TypeProblemCreated:
		prob, err := r.parseProblem(payload)
		if err != nil {
			return err
		}
		return retry.Do(ctx, r.cfg.Retry, func() error {
			return r.onProblem(ctx, prob)
		})
	default:
		return jherrors.InvalidInput("event_type", "unrecognised event type: "+eventType)
	}
}

// resolveEventType applies the §4.2 precedence: routing key, x-event-type
// header, payload "channel" field, payload "type" field.
func resolveEventType(ev InboundEvent) (string, bool) {
	candidates := []string{ev.RoutingKey, ev.Headers["x-event-type"]}
	if v, ok := ev.Payload["channel"].(string); ok {
		candidates = append(candidates, v)
	}
	if v, ok := ev.Payload["type"].(string); ok {
		candidates = append(candidates, v)
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		if canonical, ok := aliases[c]; ok {
			return canonical, true
		}
	}
	return "", false
}

// unwrap peels one level of envelope keys (payload, data, message) when
// those are present as nested objects (§4.2).
func unwrap(payload map[string]any) map[string]any {
	for _, key := range []string{"payload", "data", "message"} {
		if nested, ok := payload[key].(map[string]any); ok {
			return nested
		}
	}
	return payload
}

func (r *Router) parseSubmission(payload map[string]any) (SubmissionPayload, error) {
	submissionID, _ := payload["submission_id"].(string)
	problemID, _ := payload["problem_id"].(string)
	if submissionID == "" || problemID == "" {
		return SubmissionPayload{}, jherrors.InvalidInput("submission_id|problem_id", "both are required")
	}

	archiveURL, _ := payload["archive_url"].(string)
	if archiveURL == "" {
		if u, _ := payload["submission_url"].(string); u != "" {
			archiveURL = u
		} else if packagePath, _ := payload["package_path"].(string); packagePath != "" {
			u, err := r.joinPackageURL("submission", submissionID)
			if err != nil {
				return SubmissionPayload{}, err
			}
			archiveURL = u
		}
	}
	if archiveURL == "" {
		return SubmissionPayload{}, jherrors.InvalidInput("archive_url|submission_url|package_path", "one source is required")
	}

	teamID, _ := payload["team_id"].(string)
	userID, _ := payload["user_id"].(string)
	runOptions, _ := payload["run_options"].(map[string]any)

	return SubmissionPayload{
		SubmissionID: submissionID,
		ProblemID:    problemID,
		ArchiveURL:   archiveURL,
		TeamID:       teamID,
		UserID:       userID,
		RunOptions:   runOptions,
	}, nil
}

func (r *Router) parseProblem(payload map[string]any) (ProblemPayload, error) {
	problemID := firstNonEmptyString(payload, "problem_id", "code", "problem_code")
	if problemID == "" {
		return ProblemPayload{}, jherrors.InvalidInput("problem_id|code|problem_code", "one is required")
	}

	archiveURL := firstNonEmptyString(payload, "package_url", "archive_url")
	if archiveURL == "" {
		if packagePath, _ := payload["package_path"].(string); packagePath != "" {
			u, err := r.joinPackageURL("problem", problemID)
			if err != nil {
				return ProblemPayload{}, err
			}
			archiveURL = u
		}
	}
	if archiveURL == "" {
		return ProblemPayload{}, jherrors.InvalidInput("package_url|archive_url|package_path", "one source is required")
	}

	checksum, _ := payload["checksum"].(string)
	metadata, _ := payload["metadata"].(map[string]any)

	return ProblemPayload{
		ProblemID:  problemID,
		ArchiveURL: archiveURL,
		Checksum:   checksum,
		Metadata:   metadata,
	}, nil
}

func firstNonEmptyString(payload map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (r *Router) joinPackageURL(kind, id string) (string, error) {
	if r.cfg.PackageBaseURL == "" {
		return "", jherrors.InvalidInput("package_path", "received package_path but no package base URL is configured")
	}
	base, err := url.Parse(r.cfg.PackageBaseURL)
	if err != nil {
		return "", jherrors.InvalidInput("package_path", "configured package base URL is invalid: "+err.Error())
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + fmt.Sprintf("/%s/%s/package", kind, id)
	return base.String(), nil
}

// isRetryableNetworkError restricts retry to 404 and connection-level
// failures (§4.2): ECONNREFUSED, ENOTFOUND, timeout.
func isRetryableNetworkError(err error) bool {
	if jerr, ok := jherrors.As(err); ok {
		return jerr.Code == jherrors.CodeTransientNetwork || jerr.Code.Retryable()
	}
	msg := err.Error()
	for _, needle := range []string{"connection refused", "no such host", "timeout", "i/o timeout", fmt.Sprint(http.StatusNotFound)} {
		if strings.Contains(strings.ToLower(msg), needle) {
			return true
		}
	}
	return false
}
