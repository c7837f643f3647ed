package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chunking.TargetSize != 1024 || cfg.Chunking.Overlap != 200 {
		t.Errorf("Chunking defaults = %+v", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.Cutoff != 0.7 {
		t.Errorf("Retrieval defaults = %+v", cfg.Retrieval)
	}
	if cfg.LLM.BaseURL == "" || cfg.LLM.EmbeddingModel == "" || cfg.LLM.ChatModel == "" {
		t.Errorf("LLM defaults = %+v", cfg.LLM)
	}
	if cfg.Indexing.Workers != 4 {
		t.Errorf("Indexing defaults = %+v", cfg.Indexing)
	}
}

func TestLoad_OverridesAndFillsGaps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
chunking:
  target_size: 512
retrieval:
  top_k: 3
  cutoff: -1
llm:
  chat_model: some-local-model
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Chunking.TargetSize != 512 {
		t.Errorf("TargetSize = %d, want 512", cfg.Chunking.TargetSize)
	}
	if cfg.Chunking.Overlap != 200 {
		t.Errorf("Overlap default not applied: %d", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.Cutoff != -1 {
		t.Errorf("Explicit negative cutoff overridden: %v", cfg.Retrieval.Cutoff)
	}
	if cfg.LLM.ChatModel != "some-local-model" {
		t.Errorf("ChatModel = %s", cfg.LLM.ChatModel)
	}
	if cfg.LLM.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel default not applied: %s", cfg.LLM.EmbeddingModel)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chunking: ["), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("Expected error for invalid YAML")
	}
}
