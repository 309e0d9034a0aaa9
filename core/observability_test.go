package core

import (
	"context"
	"net/url"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func hasCounter(counters []capturedCounter, name string, status string) bool {
	for _, counter := range counters {
		if counter.name == name && counter.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(histograms []capturedHistogram, name string, status string) bool {
	for _, histogram := range histograms {
		if histogram.name == name && histogram.tags["status"] == status {
			return true
		}
	}
	return false
}

func findLog(records []capturedLog, msg string) (capturedLog, bool) {
	for _, record := range records {
		if record.msg == msg {
			return record, true
		}
	}
	return capturedLog{}, false
}

func newObservedHarness(t *testing.T) (*harness, *captureMetricsRecorder, *captureLogger) {
	t.Helper()
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	h, err := newHarness(DefaultConfig(),
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	return h, metrics, logger
}

func TestObservability_CallbackSuccess(t *testing.T) {
	h, metrics, logger := newObservedHarness(t)
	ctx := context.Background()

	redirect, err := h.orchestrator.StartBlueskyAuth(ctx, "alice.bsky.social", "ctx_secret")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.orchestrator.HandleBlueskyAuthCallback(ctx, url.Values{"state": {stateFromURL(redirect)}}, "ctx_secret"); err != nil {
		t.Fatalf("callback: %v", err)
	}

	if !hasCounter(metrics.counters, "accounts.handle_bluesky_auth_callback.total", "success") {
		t.Fatalf("expected callback success counter")
	}
	if !hasHistogram(metrics.histograms, "accounts.start_bluesky_auth.duration_ms", "success") {
		t.Fatalf("expected start duration histogram")
	}
	record, ok := findLog(logger.snapshot(), "handle_bluesky_auth_callback succeeded")
	if !ok || record.level != "info" {
		t.Fatalf("expected info success log, got %#v", logger.snapshot())
	}
	if record.fields["account_created"] != true || record.fields["did"] != "did:plc:alice" {
		t.Fatalf("expected structured fields, got %#v", record.fields)
	}
	if record.fields["context_key"] == "ctx_secret" {
		t.Fatalf("expected raw context key to stay out of logs")
	}
}

func TestObservability_ValidateSessionFailureLogsAtDebug(t *testing.T) {
	h, metrics, logger := newObservedHarness(t)

	if _, err := h.orchestrator.ValidateSession(context.Background(), "ctx_anon"); err == nil {
		t.Fatalf("expected validation failure")
	}
	record, ok := findLog(logger.snapshot(), "validate_session failed")
	if !ok {
		t.Fatalf("expected failure log")
	}
	if record.level != "debug" {
		t.Fatalf("expected debug level, got %s", record.level)
	}
	if record.fields["text_code"] != ServiceErrorSessionInvalid {
		t.Fatalf("expected text code field, got %#v", record.fields)
	}
	if !hasCounter(metrics.counters, "accounts.validate_session.total", "failure") {
		t.Fatalf("expected failure counter")
	}
}

func TestObservability_RefreshFailureLogsAtError(t *testing.T) {
	h, _, logger := newObservedHarness(t)
	h.connections.seed(GitHubConnection{UserID: "usr_1", AccessToken: "gho"})

	if _, err := h.orchestrator.RefreshGitHubConnection(context.Background(), "usr_1"); err == nil {
		t.Fatalf("expected refresh failure")
	}
	record, ok := findLog(logger.snapshot(), "refresh_github_connection failed")
	if !ok || record.level != "error" {
		t.Fatalf("expected error level failure log, got %#v", record)
	}
	if record.fields["retryable"] != false {
		t.Fatalf("expected retryable field, got %#v", record.fields)
	}
}
