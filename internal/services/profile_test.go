package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/types"
)

type fakeProfileRepo struct {
	profiles map[uuid.UUID]types.StudentProfile
	saves    int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[uuid.UUID]types.StudentProfile)}
}

func (f *fakeProfileRepo) GetByConversationID(_ context.Context, _ *gorm.DB, conversationID uuid.UUID) (*types.StudentProfile, error) {
	stored, ok := f.profiles[conversationID]
	if !ok {
		return nil, repos.ErrProfileNotFound
	}
	copied := stored
	return &copied, nil
}

func (f *fakeProfileRepo) Save(_ context.Context, _ *gorm.DB, profile *types.StudentProfile) error {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	f.saves++
	f.profiles[profile.ConversationID] = *profile
	return nil
}

func (f *fakeProfileRepo) List(_ context.Context, _ *gorm.DB, _, _ int) ([]*types.StudentProfile, error) {
	var out []*types.StudentProfile
	for id := range f.profiles {
		p := f.profiles[id]
		out = append(out, &p)
	}
	return out, nil
}

func (f *fakeProfileRepo) Count(_ context.Context, _ *gorm.DB) (int64, error) {
	return int64(len(f.profiles)), nil
}

func (f *fakeProfileRepo) AverageBudget(_ context.Context, _ *gorm.DB) (float64, error) {
	if len(f.profiles) == 0 {
		return 0, nil
	}
	var sum float64
	for _, p := range f.profiles {
		sum += float64(p.BudgetAmount)
	}
	return sum / float64(len(f.profiles)), nil
}

func (f *fakeProfileRepo) TopCountries(_ context.Context, _ *gorm.DB, _ int) ([]repos.CountryCount, error) {
	return nil, nil
}

func (f *fakeProfileRepo) TestTypeDistribution(_ context.Context, _ *gorm.DB) ([]repos.TestTypeCount, error) {
	return nil, nil
}

func (f *fakeProfileRepo) CountCreatedSince(_ context.Context, _ *gorm.DB, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeSink struct {
	err       error
	snapshots map[string]map[string]any
}

func (f *fakeSink) Save(_ context.Context, key string, snapshot map[string]any) error {
	if f.err != nil {
		return f.err
	}
	if f.snapshots == nil {
		f.snapshots = make(map[string]map[string]any)
	}
	f.snapshots[key] = snapshot
	return nil
}

func consentedConversation() *types.ConversationSession {
	conv := completedConversation()
	conv.ID = uuid.New()
	conv.SessionID = uuid.New()
	conv.SetAnswer(6, "alice@example.com", "alice@example.com")
	conv.SetAnswer(7, "+1 555 123 4567", "+1 555 123 4567")
	conv.CurrentStep = 8
	conv.IsCompleted = true
	conv.DataSaveConsent = true
	matches, _ := json.Marshal([]types.UniversityMatch{{Name: "Toronto Tech", Country: "Canada"}})
	conv.SuggestedUniversities = matches
	return conv
}

func TestProfileCreatedFromConversation(t *testing.T) {
	repo := newFakeProfileRepo()
	sink := &fakeSink{}
	creator := NewProfileCreator(testLogger(t), repo, sink)
	conv := consentedConversation()

	synced, err := creator.CreateOrUpdate(context.Background(), conv)
	if err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}
	if !synced {
		t.Fatalf("sink write reported as failed")
	}

	stored, err := repo.GetByConversationID(context.Background(), nil, conv.ID)
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if stored.Name != "Alice" {
		t.Fatalf("profile name=%q, want Alice", stored.Name)
	}
	if stored.BudgetAmount != 20000 || stored.BudgetCurrency != types.CurrencyUSD {
		t.Fatalf("profile budget=%d %s, want 20000 USD", stored.BudgetAmount, stored.BudgetCurrency)
	}
	if stored.TestType != types.TestTypeIELTS || stored.TestScore != 7.0 {
		t.Fatalf("profile test=%s %v, want IELTS 7", stored.TestType, stored.TestScore)
	}
	if stored.PreferredCountry != "Canada" {
		t.Fatalf("profile country=%q, want Canada", stored.PreferredCountry)
	}
	if stored.EducationLevel != "Bachelor's" {
		t.Fatalf("profile education level=%q, want Bachelor's", stored.EducationLevel)
	}
	if !stored.SyncedToSink {
		t.Fatalf("profile not marked as synced")
	}
	if len(sink.snapshots) != 1 {
		t.Fatalf("sink received %d snapshots, want 1", len(sink.snapshots))
	}
}

func TestProfileDefaultsWhenUnparseable(t *testing.T) {
	repo := newFakeProfileRepo()
	creator := NewProfileCreator(testLogger(t), repo, nil)

	conv := consentedConversation()
	conv.SetAnswer(3, "not sure", "not sure")
	conv.SetAnswer(4, "whatever it takes", "whatever it takes")
	conv.SetAnswer(5, "flexible", "flexible")

	if _, err := creator.CreateOrUpdate(context.Background(), conv); err != nil {
		t.Fatalf("CreateOrUpdate failed: %v", err)
	}

	stored, _ := repo.GetByConversationID(context.Background(), nil, conv.ID)
	if stored.BudgetAmount != DefaultBudgetAmount || stored.BudgetCurrency != DefaultBudgetCurrency {
		t.Fatalf("budget=%d %s, want defaults", stored.BudgetAmount, stored.BudgetCurrency)
	}
	if stored.TestType != DefaultTestType || stored.TestScore != DefaultTestScore {
		t.Fatalf("test=%s %v, want defaults", stored.TestType, stored.TestScore)
	}
	if stored.PreferredCountry != DefaultCountry {
		t.Fatalf("country=%q, want default %q", stored.PreferredCountry, DefaultCountry)
	}
}

func TestSinkFailureDoesNotRollBackLocalSave(t *testing.T) {
	repo := newFakeProfileRepo()
	sink := &fakeSink{err: errors.New("sink unavailable")}
	creator := NewProfileCreator(testLogger(t), repo, sink)
	conv := consentedConversation()

	synced, err := creator.CreateOrUpdate(context.Background(), conv)
	if err != nil {
		t.Fatalf("CreateOrUpdate returned error on sink failure: %v", err)
	}
	if synced {
		t.Fatalf("sink failure reported as success")
	}

	stored, err := repo.GetByConversationID(context.Background(), nil, conv.ID)
	if err != nil {
		t.Fatalf("local profile missing after sink failure: %v", err)
	}
	if stored.SyncedToSink {
		t.Fatalf("profile marked synced despite sink failure")
	}
}

func TestProfileUpsertDoesNotDuplicate(t *testing.T) {
	repo := newFakeProfileRepo()
	creator := NewProfileCreator(testLogger(t), repo, nil)
	conv := consentedConversation()

	if _, err := creator.CreateOrUpdate(context.Background(), conv); err != nil {
		t.Fatalf("first CreateOrUpdate failed: %v", err)
	}
	firstID := repo.profiles[conv.ID].ID

	conv.SetAnswer(4, "$30,000 USD", "$30,000 USD")
	if _, err := creator.CreateOrUpdate(context.Background(), conv); err != nil {
		t.Fatalf("second CreateOrUpdate failed: %v", err)
	}

	if len(repo.profiles) != 1 {
		t.Fatalf("repo holds %d profiles after re-invocation, want 1", len(repo.profiles))
	}
	updated := repo.profiles[conv.ID]
	if updated.ID != firstID {
		t.Fatalf("profile identity changed on update")
	}
	if updated.BudgetAmount != 30000 {
		t.Fatalf("budget=%d after update, want 30000", updated.BudgetAmount)
	}
}
