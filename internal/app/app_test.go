package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/souchan25/virtualHealthAssistant/internal/chain"
	"github.com/souchan25/virtualHealthAssistant/internal/config"
	"github.com/souchan25/virtualHealthAssistant/internal/diagnosis"
	"github.com/souchan25/virtualHealthAssistant/internal/llm"
	"github.com/souchan25/virtualHealthAssistant/internal/router"
	"github.com/souchan25/virtualHealthAssistant/internal/store"
	"github.com/souchan25/virtualHealthAssistant/internal/symptoms"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return s
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ModelDir = t.TempDir()
	cfg.DatasetsDir = ""
	cfg.Dialogue.Enabled = false
	cfg.Providers = []config.ProviderConfig{
		{Name: "mock-chat", Kind: llm.KindMock, Role: "chat"},
	}
	return cfg
}

func TestNew_WithoutModelKeepsChatWorking(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockText("Stay hydrated and rest."))
	a, err := New(context.Background(), testConfig(t), Options{
		Store:   openTestStore(t),
		Factory: chain.StaticFactory(map[string]llm.Provider{"mock-chat": mock}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Classifier != nil {
		t.Fatal("expected no classifier without an artifact")
	}
	if _, err := a.Diagnosis.Predict(context.Background(), diagnosis.Request{Symptoms: []string{"fever"}}); !errors.Is(err, symptoms.ErrModelNotReady) {
		t.Fatalf("Predict error = %v, want ErrModelNotReady", err)
	}
	if a.Diagnosis.CanValidate() {
		t.Fatal("no validate providers are configured")
	}

	d, err := a.Router.Handle(context.Background(), router.Turn{SessionID: "s1", Message: "I feel tired"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if d.Text != "Stay hydrated and rest." || d.Provider != "mock-chat" {
		t.Fatalf("unexpected decision: %+v", d)
	}

	deps := a.HTTPDeps()
	if deps.Predictor != nil || deps.Chat == nil {
		t.Fatalf("unexpected http deps: %+v", deps)
	}
}

func TestNew_BadDescriptor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers = append(cfg.Providers, config.ProviderConfig{Name: "mock-chat", Kind: llm.KindMock, Role: "chat"})

	s := openTestStore(t)
	if _, err := New(context.Background(), cfg, Options{Store: s}); err == nil {
		t.Fatal("expected duplicate provider names to fail")
	}
}

func TestRecordSink(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()
	sink := NewRecordSink(s.RecordRepo())
	ctx := context.Background()

	id, err := sink.PersistSymptomRecord(ctx, router.Record{
		SessionID:    "sess-2",
		Disease:      "Influenza",
		Confidence:   0.8,
		Symptoms:     []string{"fever", "cough"},
		Communicable: true,
		Acute:        true,
		ICD10Code:    "J11",
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := sink.ScheduleFollowUp(ctx, id); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	rec, err := s.RecordRepo().GetSymptomRecord(ctx, id)
	if err != nil || rec == nil {
		t.Fatalf("get record: %v, %v", rec, err)
	}
	if rec.Disease != "Influenza" || rec.SessionID != "sess-2" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	due, err := s.RecordRepo().ListFollowUps(ctx, time.Now().Add(4*24*time.Hour))
	if err != nil {
		t.Fatalf("list follow-ups: %v", err)
	}
	if len(due) != 1 || due[0].RecordID != id {
		t.Fatalf("unexpected follow-ups: %+v", due)
	}
}

func TestConfigDerivation(t *testing.T) {
	cfg := config.Default()
	cfg.Dialogue.Threshold = 0.7
	cfg.Validation.MaxSymptoms = 5

	rc := RouterConfig(cfg)
	if rc.Threshold != 0.7 || rc.MaxTokens != 500 || rc.DialogueTimeout != 60*time.Second {
		t.Fatalf("unexpected router config: %+v", rc)
	}
	vc := ValidatorConfig(cfg)
	if vc.MaxSymptoms != 5 || vc.MaxTokens != 300 {
		t.Fatalf("unexpected validator config: %+v", vc)
	}
}
