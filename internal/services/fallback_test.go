package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/types"
)

func TestFallbackBuilderKeepsResolvedUserID(t *testing.T) {
	cache := newMemCache()
	b := NewFallbackBuilder(cache, testLogger(t))
	uid := uuid.New()

	p := b.Build(context.Background(), uid, answersFixture())
	assertConsistent(t, p)
	if p.UserID != uid {
		t.Fatalf("user id: want=%s got=%s", uid, p.UserID)
	}
	if len(p.Quests) != 1 || p.Quests[0].Pattern != types.QuestPatternResearch {
		t.Fatalf("fallback quest shape: %+v", p.Quests)
	}
}

func TestFallbackBuilderMintsSyntheticUserID(t *testing.T) {
	cache := newMemCache()
	b := NewFallbackBuilder(cache, testLogger(t))

	p := b.Build(context.Background(), uuid.Nil, answersFixture())
	assertConsistent(t, p)
	if p.UserID == uuid.Nil {
		t.Fatalf("synthetic user id not minted")
	}
}

func TestFallbackBuilderCachesResult(t *testing.T) {
	cache := newMemCache()
	b := NewFallbackBuilder(cache, testLogger(t))

	p := b.Build(context.Background(), uuid.New(), answersFixture())

	raw, err := cache.Get(context.Background(), p.UserID.String(), cachestore.KeyCachedProfile)
	if err != nil {
		t.Fatalf("cache read: %v", err)
	}
	if raw == nil {
		t.Fatalf("fallback profile not cached")
	}
	cached, err := persist.UnmarshalProfile(raw)
	if err != nil {
		t.Fatalf("cached blob undecodable: %v", err)
	}
	if cached.UserID != p.UserID || cached.Revision != p.Revision {
		t.Fatalf("cached copy diverges: want user=%s rev=%d, got user=%s rev=%d",
			p.UserID, p.Revision, cached.UserID, cached.Revision)
	}
}

func TestFallbackBuilderSurvivesCacheFailure(t *testing.T) {
	cache := newMemCache()
	cache.failPuts = true
	b := NewFallbackBuilder(cache, testLogger(t))

	p := b.Build(context.Background(), uuid.New(), answersFixture())
	assertConsistent(t, p)
}

func TestFallbackBuilderToleratesSparseAnswers(t *testing.T) {
	b := NewFallbackBuilder(newMemCache(), testLogger(t))

	p := b.Build(context.Background(), uuid.New(), types.OnboardingAnswers{GoalText: "learn to juggle"})
	assertConsistent(t, p)
	for _, a := range p.SkillAtoms {
		if a.Tag != "general" {
			t.Fatalf("missing category should default tags to general, got %q", a.Tag)
		}
	}
}
