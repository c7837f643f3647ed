package index

import (
	"math"
	"testing"
	"time"

	"github.com/HandsomeSB/Askit/internal/model"
)

func TestCosine(t *testing.T) {
	if got := Cosine(vec(1, 0), vec(1, 0)); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: got %v, want 1", got)
	}
	if got := Cosine(vec(1, 0), vec(0, 1)); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}
	if got := Cosine(vec(1, 0), vec(1, 0, 0)); got != 0 {
		t.Errorf("mismatched lengths: got %v, want 0", got)
	}
	if got := Cosine(vec(0, 0), vec(1, 0)); got != 0 {
		t.Errorf("zero vector: got %v, want 0", got)
	}
}

func TestFilters_MatchMimeClass(t *testing.T) {
	now := time.Now()
	image := chunkWith("a", "f1", vec(1), "image/png", now)
	text := chunkWith("b", "f1", vec(1), "text/plain", now)

	f := Filters{MimeClasses: []string{"image"}}
	if !f.Match(image) {
		t.Errorf("image chunk should match image filter")
	}
	if f.Match(text) {
		t.Errorf("text chunk should not match image filter")
	}
	if !(Filters{}).Match(text) {
		t.Errorf("empty filter should match everything")
	}
}

func TestFilters_MatchDateRange(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := chunkWith("a", "f1", vec(1), "text/plain", base.AddDate(0, -2, 0))
	recent := chunkWith("b", "f1", vec(1), "text/plain", base)

	f := Filters{ModifiedAfter: base.AddDate(0, -1, 0)}
	if f.Match(old) {
		t.Errorf("old chunk should be excluded by ModifiedAfter")
	}
	if !f.Match(recent) {
		t.Errorf("recent chunk should match")
	}

	f = Filters{ModifiedBefore: base.AddDate(0, -1, 0)}
	if !f.Match(old) {
		t.Errorf("old chunk should match ModifiedBefore")
	}
	if f.Match(recent) {
		t.Errorf("recent chunk should be excluded by ModifiedBefore")
	}
}

func TestRank_FiltersAreHardExclusions(t *testing.T) {
	now := time.Now()
	// The image chunk scores perfectly but must be excluded by the filter.
	chunks := []model.Chunk{
		chunkWith("img", "f1", vec(1, 0), "image/png", now),
		chunkWith("txt", "f1", vec(0.5, 0.5), "text/plain", now),
	}
	results := Rank(chunks, vec(1, 0), Filters{MimeClasses: []string{"text"}}, 5)
	if len(results) != 1 || results[0].Chunk.ID != "txt" {
		t.Fatalf("Expected only the text chunk, got %v", results)
	}
}

func TestRank_TieBreakPrefersRecency(t *testing.T) {
	now := time.Now()
	chunks := []model.Chunk{
		chunkWith("older", "f1", vec(1, 0), "text/plain", now.Add(-time.Hour)),
		chunkWith("newer", "f1", vec(1, 0), "text/plain", now),
	}
	results := Rank(chunks, vec(1, 0), Filters{}, 5)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "newer" {
		t.Errorf("Equal scores should prefer the more recent chunk, got %s first", results[0].Chunk.ID)
	}
}

func TestRank_BoundsTopK(t *testing.T) {
	now := time.Now()
	var chunks []model.Chunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunkWith(string(rune('a'+i)), "f1", vec(1, 0), "text/plain", now))
	}
	if got := len(Rank(chunks, vec(1, 0), Filters{}, 3)); got != 3 {
		t.Errorf("Expected 3 results, got %d", got)
	}
}

func TestIsStale(t *testing.T) {
	now := time.Now()
	meta := &model.FolderIndexMeta{FolderID: "f1", TimeIndexed: now}

	if IsStale(meta, now.Add(-time.Hour)) {
		t.Errorf("content older than the index must not be stale")
	}
	if !IsStale(meta, now.Add(time.Hour)) {
		t.Errorf("content newer than the index must be stale")
	}
	if !IsStale(nil, now) {
		t.Errorf("missing meta must be stale")
	}
}
