package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/judgehost/pkg/jherrors"
	"github.com/cuemby/judgehost/pkg/retry"
)

// testRetryConfig keeps retry delays negligible so tests run fast.
func testRetryConfig() retry.Config {
	cfg := DefaultRetryPolicy()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	return cfg
}

func newTestRouter(t *testing.T, cfg Config, onSub SubmissionHandler, onProb ProblemHandler) *Router {
	t.Helper()
	if onSub == nil {
		onSub = func(ctx context.Context, p SubmissionPayload) error { return nil }
	}
	if onProb == nil {
		onProb = func(ctx context.Context, p ProblemPayload) error { return nil }
	}
	return New(cfg, onSub, onProb)
}

func TestRoute_ResolvesTypeByRoutingKey(t *testing.T) {
	var got SubmissionPayload
	r := newTestRouter(t, Config{}, func(ctx context.Context, p SubmissionPayload) error {
		got = p
		return nil
	}, nil)

	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.submission.created",
		Payload: map[string]any{
			"submission_id": "s1",
			"problem_id":    "p1",
			"archive_url":   "https://example.test/s1.tar.gz",
		},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.SubmissionID != "s1" || got.ProblemID != "p1" {
		t.Errorf("got %+v", got)
	}
}

func TestRoute_ResolvesTypeByHeaderThenChannelThenType(t *testing.T) {
	cases := []struct {
		name string
		ev   InboundEvent
	}{
		{
			name: "header",
			ev: InboundEvent{
				Headers: map[string]string{"x-event-type": "submission"},
				Payload: map[string]any{"submission_id": "s1", "problem_id": "p1", "archive_url": "u"},
			},
		},
		{
			name: "channel",
			ev: InboundEvent{
				Payload: map[string]any{"channel": "submission", "submission_id": "s1", "problem_id": "p1", "archive_url": "u"},
			},
		},
		{
			name: "type",
			ev: InboundEvent{
				Payload: map[string]any{"type": "judge.submission.created", "submission_id": "s1", "problem_id": "p1", "archive_url": "u"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			r := newTestRouter(t, Config{}, func(ctx context.Context, p SubmissionPayload) error {
				called = true
				return nil
			}, nil)
			if err := r.Route(context.Background(), tc.ev); err != nil {
				t.Fatalf("Route: %v", err)
			}
			if !called {
				t.Error("expected submission handler to be invoked")
			}
		})
	}
}

func TestRoute_UnrecognisedEventTypeFails(t *testing.T) {
	r := newTestRouter(t, Config{}, nil, nil)
	err := r.Route(context.Background(), InboundEvent{RoutingKey: "something.else", Payload: map[string]any{}})
	if !jherrors.Is(err, jherrors.CodeInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestRoute_OwnOriginReturnsRequeue(t *testing.T) {
	r := newTestRouter(t, Config{InstanceID: "host-1"}, nil, nil)
	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.submission.created",
		Headers:    map[string]string{"x-origin": "host-1"},
		Payload:    map[string]any{"submission_id": "s1", "problem_id": "p1", "archive_url": "u"},
	})
	if !errors.Is(err, Requeue) {
		t.Fatalf("expected Requeue, got %v", err)
	}
}

func TestRoute_UnwrapsOneLevelEnvelope(t *testing.T) {
	var got ProblemPayload
	r := newTestRouter(t, Config{}, nil, func(ctx context.Context, p ProblemPayload) error {
		got = p
		return nil
	})

	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.problem.created",
		Payload: map[string]any{
			"payload": map[string]any{
				"problem_id":  "prob-1",
				"package_url": "https://example.test/prob-1.tar.gz",
			},
		},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got.ProblemID != "prob-1" {
		t.Errorf("got %+v", got)
	}
}

func TestRoute_ProblemAliasesResolve(t *testing.T) {
	for _, alias := range []string{"judge.problem", "judge.package", "judge.package.created"} {
		t.Run(alias, func(t *testing.T) {
			called := false
			r := newTestRouter(t, Config{}, nil, func(ctx context.Context, p ProblemPayload) error {
				called = true
				return nil
			})
			err := r.Route(context.Background(), InboundEvent{
				RoutingKey: alias,
				Payload:    map[string]any{"problem_id": "prob-1", "package_url": "u"},
			})
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if !called {
				t.Error("expected problem handler to be invoked")
			}
		})
	}
}

func TestRoute_PackagePathConstructsFetchURL(t *testing.T) {
	var got SubmissionPayload
	r := newTestRouter(t, Config{PackageBaseURL: "https://domserver.example.test"}, func(ctx context.Context, p SubmissionPayload) error {
		got = p
		return nil
	}, nil)

	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.submission.created",
		Payload: map[string]any{
			"submission_id": "s1",
			"problem_id":    "p1",
			"package_path":  "/irrelevant/local/path",
		},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	want := "https://domserver.example.test/submission/s1/package"
	if got.ArchiveURL != want {
		t.Errorf("got archive url %q, want %q", got.ArchiveURL, want)
	}
}

func TestRoute_PackagePathWithoutBaseURLFails(t *testing.T) {
	r := newTestRouter(t, Config{}, nil, nil)
	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.submission.created",
		Payload: map[string]any{
			"submission_id": "s1",
			"problem_id":    "p1",
			"package_path":  "/irrelevant/local/path",
		},
	})
	if !jherrors.Is(err, jherrors.CodeInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestRoute_ProblemIngestRetriesOnTransientNetworkError(t *testing.T) {
	attempts := 0
	r := New(Config{
		Retry: testRetryConfig(),
	}, nil, func(ctx context.Context, p ProblemPayload) error {
		attempts++
		if attempts < 3 {
			return jherrors.TransientNetworkError("fetch", errors.New("connection refused"))
		}
		return nil
	})

	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.problem.created",
		Payload:    map[string]any{"problem_id": "prob-1", "package_url": "u"},
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRoute_ProblemIngestDoesNotRetryNonNetworkError(t *testing.T) {
	attempts := 0
	r := New(Config{
		Retry: testRetryConfig(),
	}, nil, func(ctx context.Context, p ProblemPayload) error {
		attempts++
		return jherrors.InvalidPackage("missing config.json")
	})

	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.problem.created",
		Payload:    map[string]any{"problem_id": "prob-1", "package_url": "u"},
	})
	if !jherrors.Is(err, jherrors.CodeInvalidPackage) {
		t.Fatalf("expected InvalidPackage, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt (non-retryable), got %d", attempts)
	}
}

func TestRoute_MissingRequiredSubmissionFieldsFails(t *testing.T) {
	r := newTestRouter(t, Config{}, nil, nil)
	err := r.Route(context.Background(), InboundEvent{
		RoutingKey: "judge.submission.created",
		Payload:    map[string]any{"submission_id": "s1"},
	})
	if !jherrors.Is(err, jherrors.CodeInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}
