package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/docindex/internal/config"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses a local Ollama server for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings; offline and deterministic
	ProviderStatic ProviderType = "static"
)

// ParseProvider converts a string to ProviderType, defaulting to ollama.
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{string(ProviderOllama), string(ProviderStatic)}
}

// NewEmbedder creates the provider selected by cfg. When ollama cannot be
// reached and cfg.Fallback is set, the static provider is used instead and a
// warning is logged. The result is not cached; see NewCachedEmbedder.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch ParseProvider(cfg.Provider) {
	case ProviderStatic:
		return NewStaticEmbedder(cfg.Dimensions), nil
	default:
		timeout := DefaultTimeout
		if cfg.Timeout != "" {
			d, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid embeddings timeout %q: %w", cfg.Timeout, err)
			}
			timeout = d
		}

		ocfg := DefaultOllamaConfig()
		ocfg.Host = cfg.OllamaHost
		ocfg.Model = cfg.Model
		ocfg.BatchSize = cfg.BatchSize
		ocfg.Timeout = timeout
		ocfg.Logger = logger

		e, err := NewOllamaEmbedder(ctx, ocfg)
		if err == nil {
			return e, nil
		}
		if !cfg.Fallback {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or set embeddings.provider: static", err)
		}
		logger.Warn("ollama unavailable, using static embeddings",
			slog.String("host", ocfg.Host),
			slog.String("error", err.Error()))
		return NewStaticEmbedder(cfg.Dimensions), nil
	}
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
		Provider:   ProviderStatic,
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}
	if _, ok := inner.(*OllamaEmbedder); ok {
		info.Provider = ProviderOllama
	}
	return info
}
