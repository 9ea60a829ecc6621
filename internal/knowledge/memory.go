package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// MemoryAssetRepository is an in-memory AssetRepository. It is the reference
// implementation registered as the save/get activities and the store unit
// tests exercise use cases against.
//
// Thread-safety: safe for concurrent use; engine workers may run saves in
// parallel.
type MemoryAssetRepository struct {
	mu     sync.RWMutex
	assets map[string]Asset
}

// NewMemoryAssetRepository creates an empty repository.
func NewMemoryAssetRepository() *MemoryAssetRepository {
	return &MemoryAssetRepository{assets: make(map[string]Asset)}
}

// Save stores an asset, overwriting any prior version with the same ID.
// Content-addressed IDs make the overwrite a byte-identical no-op, which is
// what keeps a retried save idempotent.
func (r *MemoryAssetRepository) Save(ctx context.Context, asset Asset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset has no ID")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[asset.ID] = asset
	return nil
}

// Get retrieves an asset by ID.
func (r *MemoryAssetRepository) Get(ctx context.Context, id string) (Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	asset, ok := r.assets[id]
	if !ok {
		return Asset{}, fmt.Errorf("asset %s not found", id)
	}
	return asset, nil
}

// Len reports the number of stored assets.
func (r *MemoryAssetRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assets)
}

// KeywordExtractionService is a deterministic ExtractionService: topics are
// the distinct words of the body longer than three runes, sorted; the summary
// is the first sentence.
type KeywordExtractionService struct{}

// Extract derives topics and a summary from the asset body.
func (KeywordExtractionService) Extract(ctx context.Context, asset Asset) (Extraction, error) {
	if asset.Body == "" {
		return Extraction{}, fmt.Errorf("asset %s has no body", asset.ID)
	}

	seen := make(map[string]bool)
	var topics []string
	for _, word := range strings.FieldsFunc(strings.ToLower(asset.Body), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len([]rune(word)) > 3 && !seen[word] {
			seen[word] = true
			topics = append(topics, word)
		}
	}
	sort.Strings(topics)

	summary := asset.Body
	if idx := strings.IndexAny(summary, ".!?"); idx >= 0 {
		summary = summary[:idx+1]
	}

	return Extraction{AssetID: asset.ID, Topics: topics, Summary: summary}, nil
}

// LoggingCuratorNotifier is a CuratorNotifier that records notifications to
// the structured log. Stands in for a real delivery channel.
type LoggingCuratorNotifier struct {
	Logger   *slog.Logger
	Curators int
}

// Notify logs the notification and reports the configured curator count.
func (n LoggingCuratorNotifier) Notify(ctx context.Context, note Notification) (int, error) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("curator notification", "asset", note.AssetID, "message", note.Message)
	if n.Curators > 0 {
		return n.Curators, nil
	}
	return 1, nil
}
