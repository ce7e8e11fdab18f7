package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/types"
)

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]types.ConversationSession
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uuid.UUID]types.ConversationSession)}
}

func (f *fakeConversationRepo) Create(_ context.Context, _ *gorm.DB, conv *types.ConversationSession) (*types.ConversationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	if conv.SessionID == uuid.Nil {
		conv.SessionID = uuid.New()
	}
	if conv.CurrentStep == 0 {
		conv.CurrentStep = 1
	}
	f.conversations[conv.SessionID] = *conv
	return conv, nil
}

func (f *fakeConversationRepo) GetBySessionID(_ context.Context, _ *gorm.DB, sessionID uuid.UUID) (*types.ConversationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.conversations[sessionID]
	if !ok {
		return nil, repos.ErrConversationNotFound
	}
	copied := stored
	return &copied, nil
}

func (f *fakeConversationRepo) Save(_ context.Context, _ *gorm.DB, conv *types.ConversationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conv.SessionID] = *conv
	return nil
}

func (f *fakeConversationRepo) SaveAtStep(_ context.Context, _ *gorm.DB, conv *types.ConversationSession, expectedStep int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.conversations[conv.SessionID]
	if !ok {
		return false, repos.ErrConversationNotFound
	}
	if stored.CurrentStep != expectedStep {
		return false, nil
	}
	f.conversations[conv.SessionID] = *conv
	return true, nil
}

type fakeChatMessageRepo struct {
	mu       sync.Mutex
	messages []types.ChatMessage
	onAppend func()
}

func (f *fakeChatMessageRepo) Append(_ context.Context, _ *gorm.DB, msg *types.ChatMessage) (*types.ChatMessage, error) {
	if f.onAppend != nil {
		f.onAppend()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	f.messages = append(f.messages, *msg)
	return msg, nil
}

func (f *fakeChatMessageRepo) ListByConversation(_ context.Context, _ *gorm.DB, conversationID uuid.UUID) ([]*types.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ChatMessage
	for i := range f.messages {
		if f.messages[i].ConversationID == conversationID {
			m := f.messages[i]
			out = append(out, &m)
		}
	}
	return out, nil
}

type fakeProfileCreator struct {
	calls int
}

func (f *fakeProfileCreator) CreateOrUpdate(_ context.Context, _ *types.ConversationSession) (bool, error) {
	f.calls++
	return true, nil
}

type conversationFixture struct {
	service  ConversationService
	convRepo *fakeConversationRepo
	msgRepo  *fakeChatMessageRepo
	profiles *fakeProfileCreator
}

func newConversationFixture(t *testing.T) *conversationFixture {
	t.Helper()
	log := testLogger(t)
	convRepo := newFakeConversationRepo()
	msgRepo := &fakeChatMessageRepo{}
	profiles := &fakeProfileCreator{}
	universityRepo := &fakeUniversityRepo{
		universities: []*types.University{
			university("Toronto Tech", "Canada", "15000 CAD", floatPtr(6.5)),
			university("Vancouver College", "Canada", "12000 CAD", floatPtr(6.0)),
			university("Montreal Institute", "Canada", "18000 CAD", floatPtr(6.0)),
			university("Quebec University", "Canada", "9000 CAD", floatPtr(6.0)),
		},
	}
	service := NewConversationService(
		log,
		convRepo,
		msgRepo,
		NewNormalizer(log, nil),
		NewUniversitySelector(log, universityRepo),
		profiles,
		nil,
		NewMemorySessionLocker(),
	)
	return &conversationFixture{service: service, convRepo: convRepo, msgRepo: msgRepo, profiles: profiles}
}

var scenarioTurns = []string{
	"Alice",
	"Bachelor's in Computer Science",
	"IELTS 7.0",
	"$25,000 USD",
	"Canada",
	"alice@example.com",
	"+1 555 123 4567",
}

func TestFullConversationFlow(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if start.CurrentStep != 1 || start.TotalSteps != 7 {
		t.Fatalf("Start=%+v, want step 1 of 7", start)
	}

	var last *TurnResult
	for i, turn := range scenarioTurns {
		last, err = fx.service.ProcessTurn(ctx, start.SessionID, turn)
		if err != nil {
			t.Fatalf("turn %d (%q) failed: %v", i+1, turn, err)
		}
		if last.ValidationError {
			t.Fatalf("turn %d (%q) was rejected: %s", i+1, turn, last.BotResponse)
		}
		wantStep := i + 2
		if last.ConversationStep != wantStep {
			t.Fatalf("after turn %d step=%d, want %d", i+1, last.ConversationStep, wantStep)
		}
	}

	if !last.Completed {
		t.Fatalf("conversation not completed after 7 turns")
	}
	if len(last.SuggestedUniversities) == 0 || len(last.SuggestedUniversities) > 3 {
		t.Fatalf("got %d recommendations, want 1..3", len(last.SuggestedUniversities))
	}
	for _, m := range last.SuggestedUniversities {
		tuition := ParseTuition(m.Tuition)
		if tuition.Parsed && ToUSD(tuition.Amount, tuition.Currency) > 25000*1.25 {
			t.Fatalf("recommendation %q exceeds budget headroom", m.Name)
		}
	}

	stored, err := fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)
	if err != nil {
		t.Fatalf("failed to reload conversation: %v", err)
	}
	if !stored.IsCompleted || stored.CurrentStep != 8 {
		t.Fatalf("stored conversation step=%d completed=%v, want 8/true", stored.CurrentStep, stored.IsCompleted)
	}
	if stored.CompletedAt == nil {
		t.Fatalf("completed conversation has no completion timestamp")
	}

	// One user and one bot message per accepted turn, plus the welcome.
	wantMessages := 1 + len(scenarioTurns)*2
	if len(fx.msgRepo.messages) != wantMessages {
		t.Fatalf("message log has %d entries, want %d", len(fx.msgRepo.messages), wantMessages)
	}
}

func TestStepTwoQuestionUsesName(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	result, err := fx.service.ProcessTurn(ctx, start.SessionID, "my name is alice")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	want := "Nice to meet you Alice!"
	if len(result.BotResponse) < len(want) || result.BotResponse[:len(want)] != want {
		t.Fatalf("step 2 question %q does not start with %q", result.BotResponse, want)
	}
}

func TestRejectedTurnDoesNotMutate(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, turn := range scenarioTurns[:2] {
		if _, err := fx.service.ProcessTurn(ctx, start.SessionID, turn); err != nil {
			t.Fatalf("setup turn failed: %v", err)
		}
	}
	before, _ := fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)

	result, err := fx.service.ProcessTurn(ctx, start.SessionID, "I love music")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if !result.ValidationError {
		t.Fatalf("step 3 input 'I love music' was accepted")
	}
	if result.ConversationStep != 3 {
		t.Fatalf("rejection reports step %d, want 3", result.ConversationStep)
	}

	after, _ := fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)
	if after.CurrentStep != before.CurrentStep || after.IsCompleted != before.IsCompleted {
		t.Fatalf("rejected turn changed step or completion: before=%+v after=%+v", before, after)
	}
	for step := 1; step <= 7; step++ {
		if after.RawFor(step) != before.RawFor(step) || after.ProcessedFor(step) != before.ProcessedFor(step) {
			t.Fatalf("rejected turn changed stored answer for step %d", step)
		}
	}
}

func TestUnknownSession(t *testing.T) {
	fx := newConversationFixture(t)
	_, err := fx.service.ProcessTurn(context.Background(), uuid.New(), "hello")
	if err != ErrSessionNotFound {
		t.Fatalf("ProcessTurn on unknown session=%v, want ErrSessionNotFound", err)
	}
}

func TestCompletedConversationIsTerminal(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, turn := range scenarioTurns {
		if _, err := fx.service.ProcessTurn(ctx, start.SessionID, turn); err != nil {
			t.Fatalf("setup turn failed: %v", err)
		}
	}
	before, _ := fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)

	for i := 0; i < 3; i++ {
		if _, err := fx.service.ProcessTurn(ctx, start.SessionID, "one more thing"); err != ErrAlreadyCompleted {
			t.Fatalf("turn after completion=%v, want ErrAlreadyCompleted", err)
		}
	}

	after, _ := fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)
	if after.UpdatedAt != before.UpdatedAt || after.CurrentStep != before.CurrentStep {
		t.Fatalf("terminal conversation was mutated")
	}
}

func TestBusySessionRejected(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	locker := NewMemorySessionLocker()
	blockedService := NewConversationService(
		testLogger(t), fx.convRepo, fx.msgRepo,
		NewNormalizer(testLogger(t), nil),
		NewUniversitySelector(testLogger(t), &fakeUniversityRepo{}),
		fx.profiles, nil, locker,
	)
	if ok, _ := locker.TryLock(ctx, start.SessionID.String()); !ok {
		t.Fatalf("could not pre-acquire lock")
	}

	if _, err := blockedService.ProcessTurn(ctx, start.SessionID, "Alice"); err != ErrSessionBusy {
		t.Fatalf("concurrent turn=%v, want ErrSessionBusy", err)
	}
}

type recordingLocker struct {
	unlocked     bool
	unlockCtxErr error
}

func (rl *recordingLocker) TryLock(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (rl *recordingLocker) Unlock(ctx context.Context, _ string) error {
	rl.unlocked = true
	rl.unlockCtxErr = ctx.Err()
	return nil
}

func TestLockReleasedAfterRequestCancel(t *testing.T) {
	log := testLogger(t)
	convRepo := newFakeConversationRepo()
	msgRepo := &fakeChatMessageRepo{}
	locker := &recordingLocker{}
	service := NewConversationService(
		log, convRepo, msgRepo,
		NewNormalizer(log, nil),
		NewUniversitySelector(log, &fakeUniversityRepo{}),
		&fakeProfileCreator{}, nil, locker,
	)

	start, err := service.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The client disconnects while the turn is being recorded.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgRepo.onAppend = cancel

	if _, err := service.ProcessTurn(ctx, start.SessionID, "Alice"); err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if !locker.unlocked {
		t.Fatalf("session lock was not released")
	}
	if locker.unlockCtxErr != nil {
		t.Fatalf("unlock ran on a canceled context: %v", locker.unlockCtxErr)
	}
}

func TestTurnMessagesTagStepNumbers(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, turn := range scenarioTurns[:2] {
		if _, err := fx.service.ProcessTurn(ctx, start.SessionID, turn); err != nil {
			t.Fatalf("setup turn failed: %v", err)
		}
	}

	want := []struct {
		sender string
		step   int
	}{
		{types.SenderBot, 1},  // welcome + first question
		{types.SenderUser, 1}, // answer to step 1
		{types.SenderBot, 2},  // question for step 2
		{types.SenderUser, 2},
		{types.SenderBot, 3},
	}
	if len(fx.msgRepo.messages) != len(want) {
		t.Fatalf("message log has %d entries, want %d", len(fx.msgRepo.messages), len(want))
	}
	for i, w := range want {
		got := fx.msgRepo.messages[i]
		if got.Sender != w.sender || got.StepNumber != w.step {
			t.Fatalf("message %d is %s/step %d, want %s/step %d", i, got.Sender, got.StepNumber, w.sender, w.step)
		}
	}
}

func TestConsentCreatesProfile(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, turn := range scenarioTurns {
		if _, err := fx.service.ProcessTurn(ctx, start.SessionID, turn); err != nil {
			t.Fatalf("setup turn failed: %v", err)
		}
	}

	result, err := fx.service.SetConsent(ctx, start.SessionID, true)
	if err != nil {
		t.Fatalf("SetConsent failed: %v", err)
	}
	if !result.DataSaved || !result.ProfileSaved {
		t.Fatalf("SetConsent=%+v, want data_saved and profile_saved", result)
	}
	if fx.profiles.calls != 1 {
		t.Fatalf("profile creator called %d times, want 1", fx.profiles.calls)
	}

	stored, _ := fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)
	if !stored.DataSaveConsent {
		t.Fatalf("consent flag not persisted")
	}
}

func TestConsentDeclinedSkipsProfile(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	result, err := fx.service.SetConsent(ctx, start.SessionID, false)
	if err != nil {
		t.Fatalf("SetConsent failed: %v", err)
	}
	if result.ProfileSaved {
		t.Fatalf("profile saved without consent")
	}
	if fx.profiles.calls != 0 {
		t.Fatalf("profile creator called %d times without consent", fx.profiles.calls)
	}
}

func TestHistoryOrdered(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for _, turn := range scenarioTurns[:3] {
		if _, err := fx.service.ProcessTurn(ctx, start.SessionID, turn); err != nil {
			t.Fatalf("setup turn failed: %v", err)
		}
	}

	history, err := fx.service.History(ctx, start.SessionID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1+3*2 {
		t.Fatalf("history has %d messages, want 7", len(history))
	}
	if history[0].Sender != types.SenderBot {
		t.Fatalf("first history entry sender=%s, want bot welcome", history[0].Sender)
	}

	if _, err := fx.service.History(ctx, uuid.New()); err != ErrSessionNotFound {
		t.Fatalf("History on unknown session=%v, want ErrSessionNotFound", err)
	}
}

func TestMonotonicStepProgression(t *testing.T) {
	fx := newConversationFixture(t)
	ctx := context.Background()

	start, err := fx.service.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i, turn := range scenarioTurns {
		stored, _ := fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)
		if stored.CurrentStep != i+1 {
			t.Fatalf("before turn %d stored step=%d, want %d", i+1, stored.CurrentStep, i+1)
		}
		if _, err := fx.service.ProcessTurn(ctx, start.SessionID, turn); err != nil {
			t.Fatalf("turn %d failed: %v", i+1, err)
		}
		stored, _ = fx.convRepo.GetBySessionID(ctx, nil, start.SessionID)
		if stored.CurrentStep != i+2 {
			t.Fatalf("after turn %d stored step=%d, want %d", i+1, stored.CurrentStep, i+2)
		}
		if stored.CurrentStep > 8 {
			t.Fatalf("step exceeded terminal state: %d", stored.CurrentStep)
		}
	}
}

func TestStaleStepWriteRejected(t *testing.T) {
	repo := newFakeConversationRepo()
	conv, _ := repo.Create(context.Background(), nil, &types.ConversationSession{})

	// Another writer advances the conversation first.
	advanced := *conv
	advanced.CurrentStep = 2
	if err := repo.Save(context.Background(), nil, &advanced); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stale := *conv
	stale.CurrentStep = 2
	saved, err := repo.SaveAtStep(context.Background(), nil, &stale, 1)
	if err != nil {
		t.Fatalf("SaveAtStep failed: %v", err)
	}
	if saved {
		t.Fatalf("stale write with expected step 1 was accepted")
	}
}
