package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/skillquest-backend/internal/cachestore"
	"github.com/yungbote/skillquest-backend/internal/docstore"
	"github.com/yungbote/skillquest-backend/internal/generator"
	"github.com/yungbote/skillquest-backend/internal/identity"
	"github.com/yungbote/skillquest-backend/internal/persist"
	"github.com/yungbote/skillquest-backend/internal/platform/logger"
	"github.com/yungbote/skillquest-backend/internal/platform/runmode"
	"github.com/yungbote/skillquest-backend/internal/types"
)

var (
	_ cachestore.Store    = (*memCache)(nil)
	_ persist.Backend     = (*fakeBackend)(nil)
	_ generator.Generator = (*fakeGenerator)(nil)
	_ identity.Resolver   = (*fakeIdentity)(nil)
	_ ProfileLoader       = (*fakeLoader)(nil)
	_ docstore.Store      = (*fakeDocStore)(nil)
	_ SubscriptionService = (*fakeSubs)(nil)
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func fixedMode(m runmode.Mode) runmode.Resolver {
	return runmode.ResolverFunc(func() runmode.Mode { return m })
}

func answersFixture() types.OnboardingAnswers {
	return types.OnboardingAnswers{
		GoalText:                "Pass TOEIC with 800 points in 3 months",
		GoalCategory:            "language",
		Deadline:                "2026-11-30",
		TimeBudgetMinutesPerDay: 45,
		SessionLengthMinutes:    25,
	}
}

// profileFixture is a hand-built integrated profile: two atoms, four quests
// (two of them in today's subset), nothing completed yet.
func profileFixture(uid uuid.UUID) *types.IntegratedUserProfile {
	return &types.IntegratedUserProfile{
		UserID:             uid,
		Revision:           1,
		OnboardingComplete: true,
		ActiveGoalID:       "goal_1",
		Answers:            answersFixture(),
		Preferences: types.PreferenceProfile{
			Version:                 types.PreferenceProfileVersion,
			TimeBudgetMinutesPerDay: 45,
		},
		SkillAtoms: []types.SkillAtom{
			{ID: "a1", DisplayName: "Foundations", Level: 1, EstimatedHours: 5, Tag: "language"},
			{ID: "a2", DisplayName: "Applied", Level: 2, DependsOn: []string{"a1"}, EstimatedHours: 8, Tag: "language"},
		},
		Quests: []types.Quest{
			{ID: "q1", Title: "Survey the field", EstimatedMinutes: 25, Difficulty: 1, Pattern: types.QuestPatternResearch, SkillAtomIDs: []string{"a1"}},
			{ID: "q2", Title: "Drill the basics", EstimatedMinutes: 25, Difficulty: 2, Pattern: types.QuestPatternDrill, SkillAtomIDs: []string{"a2"}},
			{ID: "q3", Title: "Review mistakes", EstimatedMinutes: 20, Difficulty: 2, Pattern: types.QuestPatternReview, SkillAtomIDs: []string{"a2"}},
			{ID: "q4", Title: "Build something", EstimatedMinutes: 40, Difficulty: 3, Pattern: types.QuestPatternBuild, SkillAtomIDs: []string{"a1"}},
		},
		Settings: types.ProfileSettings{NotificationsEnabled: true, Timezone: "UTC", DailyReminderHour: 9},
		Progress: types.Progress{
			TodaysQuests:     []types.TodayQuest{{QuestID: "q1"}, {QuestID: "q2"}},
			TodaysProgress:   types.TodaysProgress{Completed: 0, Total: 2},
			SkillProgression: map[string]float64{},
		},
	}
}

// memCache is an in-memory cachestore.Store with call counts and failure
// toggles.
type memCache struct {
	mu       sync.Mutex
	data     map[string]map[string][]byte
	puts     int
	gets     int
	clears   int
	failPuts bool
	failGets bool
}

func newMemCache() *memCache {
	return &memCache{data: map[string]map[string][]byte{}}
}

func (c *memCache) Put(ctx context.Context, userID, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.failPuts {
		return fmt.Errorf("cache put refused")
	}
	slot, ok := c.data[userID]
	if !ok {
		slot = map[string][]byte{}
		c.data[userID] = slot
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	slot[key] = cp
	return nil
}

func (c *memCache) Get(ctx context.Context, userID, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failGets {
		return nil, fmt.Errorf("cache get refused")
	}
	slot, ok := c.data[userID]
	if !ok {
		return nil, nil
	}
	v, ok := slot[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (c *memCache) Clear(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	delete(c.data, userID)
	return nil
}

func (c *memCache) has(userID, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.data[userID]
	if !ok {
		return false
	}
	_, ok = slot[key]
	return ok
}

// fakeBackend is a persist.Backend double with call counts, a canned load
// profile and an unconditional failure switch.
type fakeBackend struct {
	name string

	mu            sync.Mutex
	saves         int
	loads         int
	progressSaves int
	purges        int

	failAll    bool
	profile    *types.IntegratedUserProfile
	lastBundle *types.RecordBundle
	lastDoc    *types.DailyProgressDoc
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) SaveRecord(ctx context.Context, bundle types.RecordBundle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.failAll {
		return fmt.Errorf("%s backend down", b.name)
	}
	b.lastBundle = &bundle
	return nil
}

func (b *fakeBackend) LoadProfile(ctx context.Context, userID string) (*types.IntegratedUserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loads++
	if b.failAll {
		return nil, fmt.Errorf("%s backend down", b.name)
	}
	return b.profile, nil
}

func (b *fakeBackend) SaveDailyProgress(ctx context.Context, p *types.IntegratedUserProfile, doc types.DailyProgressDoc) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progressSaves++
	if b.failAll {
		return fmt.Errorf("%s backend down", b.name)
	}
	b.lastDoc = &doc
	return nil
}

func (b *fakeBackend) Purge(ctx context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.purges++
	if b.failAll {
		return fmt.Errorf("%s backend down", b.name)
	}
	return nil
}

func (b *fakeBackend) counts() (saves, loads, progressSaves, purges int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves, b.loads, b.progressSaves, b.purges
}

// fakeGenerator is a generator.Generator double.
type fakeGenerator struct {
	atoms      []types.SkillAtom
	quests     []types.Quest
	skillErr   error
	questErr   error
	skillCalls int
	questCalls int
}

func (g *fakeGenerator) GenerateSkillMap(ctx context.Context, answers types.OnboardingAnswers) ([]types.SkillAtom, error) {
	g.skillCalls++
	if g.skillErr != nil {
		return nil, g.skillErr
	}
	return g.atoms, nil
}

func (g *fakeGenerator) GenerateQuests(ctx context.Context, prefs types.PreferenceProfile, atoms []types.SkillAtom) ([]types.Quest, error) {
	g.questCalls++
	if g.questErr != nil {
		return nil, g.questErr
	}
	return g.quests, nil
}

func generatedAtoms() []types.SkillAtom {
	return []types.SkillAtom{
		{ID: "listening", DisplayName: "Listening comprehension", Level: 1, EstimatedHours: 20, Tag: "language"},
		{ID: "reading", DisplayName: "Reading comprehension", Level: 1, EstimatedHours: 20, Tag: "language"},
		{ID: "exam_tactics", DisplayName: "Exam tactics", Level: 2, DependsOn: []string{"listening", "reading"}, EstimatedHours: 8, Tag: "language"},
	}
}

func generatedQuests() []types.Quest {
	return []types.Quest{
		{Title: "Listen to one news podcast", Description: "One full episode", Deliverable: "Summary note", EstimatedMinutes: 30, Difficulty: 2, Pattern: types.QuestPatternImmerse, SkillAtomIDs: []string{"listening"}},
		{Title: "Timed reading set", Description: "Two passages", Deliverable: "Score sheet", EstimatedMinutes: 25, Difficulty: 3, Pattern: types.QuestPatternDrill, SkillAtomIDs: []string{"reading"}},
		{Title: "Review answer patterns", Description: "Part 5 traps", Deliverable: "Trap list", EstimatedMinutes: 20, Difficulty: 3, Pattern: types.QuestPatternReview, SkillAtomIDs: []string{"exam_tactics"}},
		{Title: "Full mini mock", Description: "Half-length mock exam", Deliverable: "Score", EstimatedMinutes: 60, Difficulty: 4, Pattern: types.QuestPatternBuild, SkillAtomIDs: []string{"listening", "reading"}},
	}
}

// fakeIdentity is an identity.Resolver double.
type fakeIdentity struct {
	uid uuid.UUID
	err error
}

func (f *fakeIdentity) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	if f.err != nil {
		return identity.Identity{}, f.err
	}
	if token == "" {
		return identity.Identity{UserID: f.uid, Token: "minted-token", Created: true}, nil
	}
	return identity.Identity{UserID: f.uid, Token: token}, nil
}

func (f *fakeIdentity) Verify(token string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	return f.uid, nil
}

// fakeLoader is a ProfileLoader double.
type fakeLoader struct {
	mu    sync.Mutex
	p     *types.IntegratedUserProfile
	err   error
	calls int
}

func (l *fakeLoader) Load(ctx context.Context, userID uuid.UUID) (*types.IntegratedUserProfile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.p, nil
}

func (l *fakeLoader) set(p *types.IntegratedUserProfile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.p = p
}

// fakeDocStore implements docstore.Store far enough for subscription tests:
// Subscribe registrations plus a manual fire method. The CRUD methods are
// unused there.
type fakeDocStore struct {
	mu     sync.Mutex
	subs   map[int]func(ev docstore.ChangeEvent)
	nextID int
	subErr error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{subs: map[int]func(ev docstore.ChangeEvent){}}
}

func (s *fakeDocStore) Create(ctx context.Context, path, id string, data interface{}) error {
	return nil
}

func (s *fakeDocStore) Read(ctx context.Context, path, id string) (*docstore.Document, error) {
	return nil, nil
}

func (s *fakeDocStore) Update(ctx context.Context, path, id string, partial map[string]interface{}) error {
	return nil
}

func (s *fakeDocStore) Delete(ctx context.Context, path, id string) error { return nil }

func (s *fakeDocStore) Query(ctx context.Context, path string, conds []docstore.Condition, opts ...docstore.QueryOption) ([]docstore.Document, error) {
	return nil, nil
}

func (s *fakeDocStore) BatchWrite(ctx context.Context, ops []docstore.WriteOp) error { return nil }

func (s *fakeDocStore) Subscribe(target docstore.Target, onChange func(ev docstore.ChangeEvent), onError func(err error)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return nil, s.subErr
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = onChange
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}, nil
}

func (s *fakeDocStore) fire(ev docstore.ChangeEvent) {
	s.mu.Lock()
	handlers := make([]func(docstore.ChangeEvent), 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (s *fakeDocStore) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// fakeSubs is a SubscriptionService double for reset tests.
type fakeSubs struct {
	forgets []uuid.UUID
}

func (f *fakeSubs) SubscribeToProfile(ctx context.Context, userID uuid.UUID, cb func(*types.IntegratedUserProfile)) func() {
	return func() {}
}

func (f *fakeSubs) Forget(userID uuid.UUID) {
	f.forgets = append(f.forgets, userID)
}

// newTestRouter builds a real router over fake backends.
func newTestRouter(t *testing.T, mode runmode.Mode, remote, local persist.Backend) *persist.Router {
	t.Helper()
	return persist.NewRouter(fixedMode(mode), remote, local, testLogger(t))
}
