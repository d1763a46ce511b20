package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mikey/llm-answer-bot/internal/adapters/ledger"
	"github.com/mikey/llm-answer-bot/internal/config"
	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/mikey/llm-answer-bot/internal/utils"
	"go.uber.org/zap/zaptest"
)

func newTestConfig(values map[string]interface{}) *config.Config {
	cfg := config.NewFromViper(config.NewEmptyViper())
	for k, v := range values {
		cfg.Set(k, v)
	}
	return cfg
}

type instructClient struct {
	instruct bool
}

func (c instructClient) Generate(ctx context.Context, req *core.GenerationRequest) (*core.GenerationResult, error) {
	return &core.GenerationResult{Text: req.Prompt}, nil
}

func (c instructClient) Ping(ctx context.Context) error { return nil }

func (c instructClient) UsesInstructFormat() bool { return c.instruct }

func TestPromptTemplate(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		client     core.ModelClient
		want       string
	}{
		{"configured wins", "Q: %s", instructClient{instruct: true}, "Q: %s"},
		{"mistral on bedrock", "", instructClient{instruct: true}, core.MistralPromptTemplate},
		{"plain backend", "", instructClient{instruct: false}, "%s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := promptTemplate(config.ModelConfig{PromptTemplate: tt.configured}, tt.client)
			if got != tt.want {
				t.Errorf("promptTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuantization(t *testing.T) {
	if q := quantization(config.ModelConfig{UseQuantization: true, LoadIn4Bit: true}); q != "4bit" {
		t.Errorf("quantization = %q, want 4bit", q)
	}
	if q := quantization(config.ModelConfig{UseQuantization: true}); q != "8bit" {
		t.Errorf("quantization = %q, want 8bit", q)
	}
	if q := quantization(config.ModelConfig{}); q != "" {
		t.Errorf("quantization = %q, want none", q)
	}
}

func TestCreateModelService(t *testing.T) {
	cfg := newTestConfig(map[string]interface{}{
		"model.provider": "openai",
		"model.base_url": "http://127.0.0.1:1/v1",
		"model.name":     "code-du-travail",
		"model.device":   "cuda",
	})
	logger := zaptest.NewLogger(t)
	f := NewModelFactory(cfg, logger, utils.NewTextProcessor(logger))

	service, err := f.CreateModelService()
	if err != nil {
		t.Fatalf("CreateModelService() error = %v", err)
	}
	info := service.Describe()
	if info.Provider != "openai" || info.Name != "code-du-travail" || info.Device != "cuda" || info.Quantization != "4bit" {
		t.Errorf("info = %+v", info)
	}
	if info.Loaded || service.IsLoaded() {
		t.Error("a new service must not report a loaded model")
	}
}

func TestCreateModelClientRejectsUnknownProvider(t *testing.T) {
	cfg := newTestConfig(map[string]interface{}{"model.provider": "llamacpp"})
	logger := zaptest.NewLogger(t)

	if _, err := NewModelFactory(cfg, logger, utils.NewTextProcessor(logger)).CreateModelClient(); err == nil {
		t.Error("an unknown provider should be rejected")
	}
}

func TestGenerationParams(t *testing.T) {
	cfg := newTestConfig(nil)
	logger := zaptest.NewLogger(t)
	f := NewModelFactory(cfg, logger, utils.NewTextProcessor(logger))

	tg := f.GenerationParams(core.ChannelTelegram)
	if tg.MaxTokens != 512 || tg.Temperature != 0.7 {
		t.Errorf("telegram params = %+v", tg)
	}
	em := f.GenerationParams(core.ChannelEmail)
	if em.MaxTokens != 1500 || em.Temperature != 0.3 || em.RepetitionPenalty != 1.15 {
		t.Errorf("email params = %+v", em)
	}
}

func TestCreateLedger(t *testing.T) {
	logger := zaptest.NewLogger(t)

	mem, err := NewLedgerFactory(newTestConfig(map[string]interface{}{"ledger.type": "memory", "ledger.cleanup_frequency": "0"}), logger).CreateLedger()
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Stop()
	if _, ok := mem.(*ledger.MemoryLedger); !ok {
		t.Errorf("memory ledger is %T", mem)
	}

	path := filepath.Join(t.TempDir(), "data", "replies.db")
	lite, err := NewLedgerFactory(newTestConfig(map[string]interface{}{"ledger.sqlite_path": path, "ledger.cleanup_frequency": "0"}), logger).CreateLedger()
	if err != nil {
		t.Fatal(err)
	}
	defer lite.Stop()
	if _, ok := lite.(*ledger.SQLiteLedger); !ok {
		t.Errorf("default ledger is %T, want sqlite", lite)
	}

	if _, err := NewLedgerFactory(newTestConfig(map[string]interface{}{"ledger.type": "mysql"}), logger).CreateLedger(); err == nil {
		t.Error("mysql without a DSN should fail")
	}
	if _, err := NewLedgerFactory(newTestConfig(map[string]interface{}{"ledger.type": "redis"}), logger).CreateLedger(); err == nil {
		t.Error("an unknown ledger type should fail")
	}
}

func TestChannelNames(t *testing.T) {
	all, err := ChannelNames("all")
	if err != nil || len(all) != 2 || all[0] != "telegram" || all[1] != "email" {
		t.Errorf("ChannelNames(all) = %v, %v", all, err)
	}
	if one, _ := ChannelNames("email"); len(one) != 1 || one[0] != "email" {
		t.Errorf("ChannelNames(email) = %v", one)
	}
	if _, err := ChannelNames("slack"); err == nil {
		t.Error("unknown adapters should be rejected")
	}
}
