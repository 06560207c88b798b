package main

import (
	"os"
	"path/filepath"
	"testing"

	"instrumon/config"
	"instrumon/downsample"
)

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "env.yaml")
	if err := os.WriteFile(envFile, []byte("ui:\n  mode: ansi\n"), 0o644); err != nil {
		t.Fatalf("write env config: %v", err)
	}
	flagFile := filepath.Join(dir, "flag.yaml")
	if err := os.WriteFile(flagFile, []byte("ui:\n  mode: headless\n"), 0o644); err != nil {
		t.Fatalf("write flag config: %v", err)
	}
	t.Setenv(envConfigPath, envFile)

	cfg, from, err := loadConfig(flagFile)
	if err != nil || cfg.UI.Mode != config.UIModeHeadless || from != flagFile {
		t.Fatalf("flag should win: mode=%v from=%q err=%v", cfg, from, err)
	}
	cfg, from, err = loadConfig("")
	if err != nil || cfg.UI.Mode != config.UIModeANSI || from != envFile {
		t.Fatalf("env should be used without a flag: from=%q err=%v", from, err)
	}
	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("a missing -config path must fail")
	}
}

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(envConfigPath, "")
	cfg, from, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if from != "built-in defaults" || cfg.Source.Kind != config.SourceWebSocket {
		t.Fatalf("unexpected fallback: from=%q kind=%q", from, cfg.Source.Kind)
	}
}

func TestInitialSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Display.DefaultWindowSeconds = 10
	cfg.Display.Multiplier = 2
	cfg.Display.Divider = 5
	cfg.Display.Method = "mean"

	s := initialSettings(cfg)
	if s.WindowLength != 10*cfg.Buffer.SampleRateHz {
		t.Fatalf("window should be seconds times rate, got %d", s.WindowLength)
	}
	if s.Multiplier != 2 || s.Divider != 5 || s.Method != downsample.Mean {
		t.Fatalf("unexpected settings %+v", s)
	}
}
