package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHATPROBE_BASE_URL", "CHATPROBE_ACCOUNT", "CHATPROBE_PASSWORD",
		"CHATPROBE_SHOP_ID", "CHATPROBE_CONCURRENCY", "CHATPROBE_WAIT_SECONDS",
		"CHATPROBE_REPORT_DIR", "DATABASE_URL", "NATS_URL", "NATS_TOKEN",
		"LOG_LEVEL", "CHATPROBE_SMTP_PASSWORD", "CHATPROBE_RECIPIENTS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("explicit missing config path should fail")
	}

	// Default path missing is fine: defaults + env only.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.BaseURL != "https://dev.zhiyan.chat" {
		t.Errorf("expected default base url, got %s", cfg.BaseURL)
	}
	if cfg.Shop.ID != "585" {
		t.Errorf("expected default shop id 585, got %s", cfg.Shop.ID)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("expected default concurrency 3, got %d", cfg.Concurrency)
	}
	if cfg.WaitBetweenQuestions != 10 {
		t.Errorf("expected default wait 10s, got %d", cfg.WaitBetweenQuestions)
	}
	if cfg.HTTPTimeout != 120 {
		t.Errorf("expected default http timeout 120s, got %d", cfg.HTTPTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.SMTP.Enabled() {
		t.Error("smtp should be disabled by default")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	raw := `
base_url: https://staging.zhiyan.chat
account: tester
password: secret
shop:
  platform: tmall
  id: "999"
concurrency: 5
wait_between_questions: 2
questions:
  - 你们家的洗面奶怎么样？
  - 适合敏感肌吗？
smtp:
  host: smtp.163.com
  port: 465
  from: qa@example.com
  recipients:
    - lead@example.com
`
	path := filepath.Join(t.TempDir(), "chatprobe.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.BaseURL != "https://staging.zhiyan.chat" {
		t.Errorf("expected yaml base url, got %s", cfg.BaseURL)
	}
	if cfg.Shop.ID != "999" {
		t.Errorf("expected shop id 999, got %s", cfg.Shop.ID)
	}
	if cfg.Shop.Platform != "tmall" {
		t.Errorf("expected platform tmall, got %s", cfg.Shop.Platform)
	}
	if cfg.Concurrency != 5 {
		t.Errorf("expected concurrency 5, got %d", cfg.Concurrency)
	}
	if len(cfg.Questions) != 2 {
		t.Errorf("expected 2 questions, got %d", len(cfg.Questions))
	}
	if !cfg.SMTP.Enabled() {
		t.Error("smtp should be enabled with host and recipients set")
	}
	if cfg.Wait().Seconds() != 2 {
		t.Errorf("expected 2s wait, got %s", cfg.Wait())
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	raw := "concurrency: 5\naccount: from-file\n"
	path := filepath.Join(t.TempDir(), "chatprobe.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHATPROBE_CONCURRENCY", "12")
	t.Setenv("CHATPROBE_ACCOUNT", "from-env")
	t.Setenv("CHATPROBE_RECIPIENTS", "a@example.com, b@example.com")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Concurrency != 12 {
		t.Errorf("env should win over file, got %d", cfg.Concurrency)
	}
	if cfg.Account != "from-env" {
		t.Errorf("env should win over file, got %s", cfg.Account)
	}
	if len(cfg.SMTP.Recipients) != 2 || cfg.SMTP.Recipients[1] != "b@example.com" {
		t.Errorf("unexpected recipients: %v", cfg.SMTP.Recipients)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	clearEnv(t)

	for name, raw := range map[string]string{
		"zero concurrency": "concurrency: 0\n",
		"negative wait":    "wait_between_questions: -1\n",
		"zero timeout":     "http_timeout: 0\n",
	} {
		path := filepath.Join(t.TempDir(), "chatprobe.yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
