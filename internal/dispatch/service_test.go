package dispatch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sungwon/notify-dispatch/internal/consent"
	"github.com/sungwon/notify-dispatch/internal/job"
	"github.com/sungwon/notify-dispatch/internal/provider"
	"github.com/sungwon/notify-dispatch/internal/templates"
)

// --- Mock: provider.Client ---

type sentTemplate struct {
	To     string
	Name   string
	Params []string
}

type mockClient struct {
	mu        sync.Mutex
	templates []sentTemplate
	texts     map[string]string
	calls     int
	failOn    map[string]error
}

func newMockClient() *mockClient {
	return &mockClient{texts: make(map[string]string), failOn: make(map[string]error)}
}

func (m *mockClient) SendTemplateMessage(_ context.Context, msg provider.TemplateMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.failOn[msg.To]; err != nil {
		return "", err
	}
	params := make([]string, len(msg.Parameters))
	for i, p := range msg.Parameters {
		params[i] = p.Text
	}
	m.templates = append(m.templates, sentTemplate{To: msg.To, Name: msg.TemplateName, Params: params})
	return fmt.Sprintf("wamid.%d", m.calls), nil
}

func (m *mockClient) SendTextMessage(_ context.Context, to, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.failOn[to]; err != nil {
		return "", err
	}
	m.texts[to] = body
	return fmt.Sprintf("wamid.%d", m.calls), nil
}

func (m *mockClient) Name() string                        { return "mock" }
func (m *mockClient) HealthCheck(_ context.Context) error { return nil }

// --- Mock: consent.Store that fails ---

type failingStore struct{}

func (failingStore) LoadRecipient(_ context.Context, _, _ string) (*consent.Record, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) UpsertRecipient(_ context.Context, _ consent.Record) (*consent.Record, error) {
	return nil, errors.New("connection refused")
}

// --- Mock: Renderer counting calls ---

type countingRenderer struct {
	next  Renderer
	mu    sync.Mutex
	calls int
}

func (r *countingRenderer) Render(ctx context.Context, name string, payload map[string]any, lang string) (templates.Rendered, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.next.Render(ctx, name, payload, lang)
}

var testTemplates = templates.MapSource{
	"en": {
		"attendance_alert": "{{student}} was absent on {{date}}",
		"otp_code":         "Your code is {{code}}",
		"fee_reminder":     "Dear {{name}}, {{amount}} is due for {{student}}",
		"bus_delay":        "Bus {{route}} is running {{minutes}} minutes late",
	},
}

type fixture struct {
	svc      *Service
	client   *mockClient
	store    *consent.MemoryStore
	renderer *countingRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := newMockClient()
	store := consent.NewMemoryStore()
	renderer := &countingRenderer{next: templates.NewRenderer(testTemplates)}
	return &fixture{
		svc:      NewService(store, renderer, client, zerolog.Nop()),
		client:   client,
		store:    store,
		renderer: renderer,
	}
}

func phone(i int) string {
	return fmt.Sprintf("+1555%07d", i)
}

func TestProcess_TransactionalSharesParameters(t *testing.T) {
	f := newFixture(t)
	j := &job.Job{
		ID: "job-1", TenantID: "school-1", Type: job.TypeTransactional,
		TemplateName: "attendance_alert", Language: "en",
		Payload:    map[string]any{"student": "Ana", "date": "Monday"},
		Recipients: []job.Recipient{{Phone: phone(1)}, {Phone: phone(2)}},
	}

	results, err := f.svc.Process(context.Background(), j)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != job.ResultSent || r.MessageID == "" {
			t.Errorf("unexpected result %+v", r)
		}
	}
	if f.renderer.calls != 1 {
		t.Errorf("expected 1 render, got %d", f.renderer.calls)
	}
	want := []string{"Ana", "Monday"}
	for _, sent := range f.client.templates {
		if !reflect.DeepEqual(sent.Params, want) {
			t.Errorf("params for %s = %v, want %v", sent.To, sent.Params, want)
		}
	}
}

func TestProcess_ConsentPartition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.UpsertRecipient(ctx, consent.Record{TenantID: "school-1", Phone: phone(2), Consent: false})
	_, _ = f.store.UpsertRecipient(ctx, consent.Record{TenantID: "school-1", Phone: phone(3), Consent: true, Disabled: true})
	_, _ = f.store.UpsertRecipient(ctx, consent.Record{TenantID: "school-1", Phone: phone(4), Consent: true})

	j := &job.Job{
		ID: "job-2", TenantID: "school-1", Type: job.TypeOTP,
		TemplateName: "otp_code", Language: "en",
		Payload:    map[string]any{"code": "4821"},
		Recipients: []job.Recipient{{Phone: phone(1)}, {Phone: phone(2)}, {Phone: phone(3)}, {Phone: phone(4)}},
	}

	results, err := f.svc.Process(ctx, j)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	byPhone := make(map[string]job.SendResult)
	for _, r := range results {
		byPhone[r.Recipient] = r
	}
	for _, p := range []string{phone(2), phone(3)} {
		r := byPhone[p]
		if r.Status != job.ResultSkipped || r.Error != job.SkipReasonConsent {
			t.Errorf("result for %s = %+v, want skipped with consent reason", p, r)
		}
	}
	for _, p := range []string{phone(1), phone(4)} {
		if byPhone[p].Status != job.ResultSent {
			t.Errorf("result for %s = %+v, want sent", p, byPhone[p])
		}
	}
	for _, sent := range f.client.templates {
		if sent.To == phone(2) || sent.To == phone(3) {
			t.Errorf("suppressed recipient %s reached the provider", sent.To)
		}
	}
}

func TestProcess_ConsentMatchesAnyPhoneSpelling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.UpsertRecipient(ctx, consent.Record{TenantID: "school-1", Phone: "+919876543210", Consent: false})

	j := &job.Job{
		ID: "job-9", TenantID: "school-1", Type: job.TypeTransactional,
		TemplateName: "attendance_alert", Language: "en",
		Payload:    map[string]any{"student": "Ravi", "date": "Monday"},
		Recipients: []job.Recipient{{Phone: "919876543210"}, {Phone: "1 555 000 0001"}},
	}

	results, err := f.svc.Process(ctx, j)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != job.ResultSkipped || results[0].Recipient != "+919876543210" {
		t.Errorf("opted-out recipient result = %+v, want skipped", results[0])
	}
	if f.client.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", f.client.calls)
	}
	if to := f.client.templates[0].To; to != "+15550000001" {
		t.Errorf("provider to = %q, want canonical +15550000001", to)
	}
}

func TestProcess_AllSuppressedMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.store.UpsertRecipient(ctx, consent.Record{TenantID: "school-1", Phone: phone(1), Consent: false})

	j := &job.Job{
		ID: "job-3", TenantID: "school-1", Type: job.TypeTransactional,
		TemplateName: "attendance_alert", Language: "en",
		Recipients: []job.Recipient{{Phone: phone(1)}},
	}

	results, err := f.svc.Process(ctx, j)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(results) != 1 || results[0].Status != job.ResultSkipped {
		t.Errorf("results = %+v, want single skipped", results)
	}
	if f.client.calls != 0 {
		t.Errorf("expected no provider calls, got %d", f.client.calls)
	}
	if f.renderer.calls != 0 {
		t.Errorf("expected no renders, got %d", f.renderer.calls)
	}
}

func TestProcess_BulkPerRecipientSubstitutions(t *testing.T) {
	f := newFixture(t)
	j := &job.Job{
		ID: "job-4", TenantID: "school-1", Type: job.TypeBulk,
		TemplateName: "fee_reminder", Language: "en",
		Payload: map[string]any{"amount": float64(1200), "name": "Parent"},
		Recipients: []job.Recipient{
			{Phone: phone(1), Substitutions: map[string]any{"name": "Mr. Rao", "student": "Ravi"}},
			{Phone: phone(2), Substitutions: map[string]any{"student": "Meera"}},
		},
	}

	results, err := f.svc.Process(context.Background(), j)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	want := map[string][]string{
		phone(1): {"Mr. Rao", "1200", "Ravi"},
		phone(2): {"Parent", "1200", "Meera"},
	}
	for _, sent := range f.client.templates {
		if !reflect.DeepEqual(sent.Params, want[sent.To]) {
			t.Errorf("params for %s = %v, want %v", sent.To, sent.Params, want[sent.To])
		}
	}
	if _, ok := j.Payload["student"]; ok {
		t.Error("job payload was mutated by substitutions")
	}
}

func TestProcess_BulkCoversEveryBatch(t *testing.T) {
	f := newFixture(t)
	recipients := make([]job.Recipient, 2*BulkBatchSize+7)
	for i := range recipients {
		recipients[i] = job.Recipient{Phone: phone(i + 1), Substitutions: map[string]any{"student": fmt.Sprint(i)}}
	}
	j := &job.Job{
		ID: "job-5", TenantID: "school-1", Type: job.TypeBulk,
		TemplateName: "fee_reminder", Language: "en",
		Recipients: recipients,
	}

	results, err := f.svc.Process(context.Background(), j)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(results) != len(recipients) {
		t.Fatalf("expected %d results, got %d", len(recipients), len(results))
	}
	if f.client.calls != len(recipients) {
		t.Errorf("expected %d provider calls, got %d", len(recipients), f.client.calls)
	}
	if f.renderer.calls != len(recipients) {
		t.Errorf("expected %d renders, got %d", len(recipients), f.renderer.calls)
	}
	for i, r := range results {
		if r.Recipient != recipients[i].Phone {
			t.Fatalf("result %d is for %s, want %s (order must be preserved)", i, r.Recipient, recipients[i].Phone)
		}
	}
}

func TestProcess_BulkAbortsOnFirstFailure(t *testing.T) {
	f := newFixture(t)
	f.client.failOn[phone(3)] = &provider.ProviderError{Provider: "mock", StatusCode: 400, Message: "invalid recipient", Permanent: true}

	recipients := make([]job.Recipient, 5)
	for i := range recipients {
		recipients[i] = job.Recipient{Phone: phone(i + 1)}
	}
	j := &job.Job{
		ID: "job-6", TenantID: "school-1", Type: job.TypeBulk,
		TemplateName: "fee_reminder", Language: "en", Recipients: recipients,
	}

	results, err := f.svc.Process(context.Background(), j)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var pe *ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProcessError, got %T", err)
	}
	var provErr *provider.ProviderError
	if !errors.As(err, &provErr) {
		t.Error("expected the provider error to be reachable through the chain")
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results (2 sent + 1 failed), got %d: %+v", len(results), results)
	}
	if results[2].Status != job.ResultFailed || results[2].Recipient != phone(3) {
		t.Errorf("failing result = %+v", results[2])
	}
	if !reflect.DeepEqual(PartialResults(err), results) {
		t.Error("PartialResults does not match returned results")
	}
	if f.client.calls != 3 {
		t.Errorf("expected provider calls to stop at 3, got %d", f.client.calls)
	}
}

func TestProcess_SessionText(t *testing.T) {
	f := newFixture(t)
	j := &job.Job{
		ID: "job-7", TenantID: "school-1", Type: job.TypeSessionText,
		TemplateName: "bus_delay", Language: "en",
		Payload:    map[string]any{"route": "7A", "minutes": 15},
		Recipients: []job.Recipient{{Phone: phone(1)}, {Phone: phone(2)}},
	}

	results, err := f.svc.Process(context.Background(), j)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if len(f.client.templates) != 0 {
		t.Error("session text must not send templates")
	}
	want := "Bus 7A is running 15 minutes late"
	for _, p := range []string{phone(1), phone(2)} {
		if f.client.texts[p] != want {
			t.Errorf("text for %s = %q, want %q", p, f.client.texts[p], want)
		}
	}
}

func TestProcess_SessionTextAbortsOnFailure(t *testing.T) {
	f := newFixture(t)
	f.client.failOn[phone(1)] = errors.New("timeout")
	j := &job.Job{
		ID: "job-8", TenantID: "school-1", Type: job.TypeSessionText,
		TemplateName: "bus_delay", Language: "en",
		Recipients: []job.Recipient{{Phone: phone(1)}, {Phone: phone(2)}},
	}

	results, err := f.svc.Process(context.Background(), j)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(results) != 1 || results[0].Status != job.ResultFailed {
		t.Errorf("results = %+v, want single failed", results)
	}
	if _, ok := f.client.texts[phone(2)]; ok {
		t.Error("second recipient should not be contacted after a failure")
	}
}

func TestProcess_TemplateNotFoundAbortsBeforeSend(t *testing.T) {
	f := newFixture(t)
	j := &job.Job{
		ID: "job-9", TenantID: "school-1", Type: job.TypeTransactional,
		TemplateName: "missing", Language: "en",
		Recipients: []job.Recipient{{Phone: phone(1)}},
	}

	_, err := f.svc.Process(context.Background(), j)
	if !errors.Is(err, templates.ErrTemplateNotFound) {
		t.Fatalf("error = %v, want ErrTemplateNotFound in chain", err)
	}
	if f.client.calls != 0 {
		t.Errorf("expected no provider calls, got %d", f.client.calls)
	}
}

func TestProcess_ConsentErrorAbortsBeforeSend(t *testing.T) {
	client := newMockClient()
	svc := NewService(failingStore{}, templates.NewRenderer(testTemplates), client, zerolog.Nop())
	j := &job.Job{
		ID: "job-10", TenantID: "school-1", Type: job.TypeTransactional,
		TemplateName: "attendance_alert", Language: "en",
		Recipients: []job.Recipient{{Phone: phone(1)}},
	}

	results, err := svc.Process(context.Background(), j)
	if err == nil {
		t.Fatal("expected error")
	}
	if results != nil {
		t.Errorf("results = %+v, want nil", results)
	}
	if client.calls != 0 {
		t.Errorf("expected no provider calls, got %d", client.calls)
	}
}

func TestProcess_Idempotent(t *testing.T) {
	f := newFixture(t)
	j := &job.Job{
		ID: "job-11", TenantID: "school-1", Type: job.TypeTransactional,
		TemplateName: "attendance_alert", Language: "en",
		Payload:    map[string]any{"student": "Ana", "date": "Monday"},
		Recipients: []job.Recipient{{Phone: phone(1)}},
	}

	first, err := f.svc.Process(context.Background(), j)
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	second, err := f.svc.Process(context.Background(), j)
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if len(first) != len(second) || first[0].Status != second[0].Status {
		t.Errorf("reprocessing changed the outcome: %+v vs %+v", first, second)
	}
}
