package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholarport/backend/internal/clients/openai"
	"github.com/scholarport/backend/internal/pkg/ctxutil"
	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/types"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrAlreadyCompleted = errors.New("conversation already completed")
	ErrSessionBusy      = errors.New("another turn is in progress for this session")
)

const (
	firstStep = 1
	lastStep  = 7
	doneStep  = 8
)

const welcomeMessage = "Hi! I'm Scholarport, your study-abroad assistant. I'll ask you a few quick questions and then suggest universities that fit you."

// questions[step-1] is the prompt for that step. Step 2 interpolates
// the student's name.
var questions = [lastStep]string{
	"What's your name?",
	"Nice to meet you %s! What's your current education level or field of study?",
	"What's your English test score? (IELTS or TOEFL, or say \"no test yet\")",
	"What's your yearly budget for tuition?",
	"Which country would you like to study in?",
	"What's your email address? (or say \"skip\")",
	"Finally, what's your phone number? (or say \"skip\")",
}

var guidedSuggestions = map[int][]string{
	2: {"Bachelor's in Computer Science", "Master's in Business", "High School graduate"},
	3: {"IELTS 6.5", "TOEFL 90", "No test yet"},
	4: {"$20,000", "$30,000", "$50,000"},
	5: {"USA", "UK", "Canada", "Australia", "Flexible"},
	6: {"Skip"},
	7: {"Skip"},
}

// SessionLocker serializes turns per session. The in-memory
// implementation covers a single process; the redis client provides a
// multi-process one with the same shape.
type SessionLocker interface {
	TryLock(ctx context.Context, sessionID string) (bool, error)
	Unlock(ctx context.Context, sessionID string) error
}

type memorySessionLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemorySessionLocker() SessionLocker {
	return &memorySessionLocker{held: make(map[string]bool)}
}

func (ml *memorySessionLocker) TryLock(_ context.Context, sessionID string) (bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.held[sessionID] {
		return false, nil
	}
	ml.held[sessionID] = true
	return true, nil
}

func (ml *memorySessionLocker) Unlock(_ context.Context, sessionID string) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	delete(ml.held, sessionID)
	return nil
}

type StartResult struct {
	SessionID   uuid.UUID `json:"session_id"`
	Message     string    `json:"message"`
	Question    string    `json:"question"`
	CurrentStep int       `json:"current_step"`
	TotalSteps  int       `json:"total_steps"`
}

type TurnResult struct {
	BotResponse           string                  `json:"bot_response"`
	ConversationStep      int                     `json:"conversation_step"`
	Completed             bool                    `json:"completed"`
	SuggestedUniversities []types.UniversityMatch `json:"suggested_universities,omitempty"`
	GuidedSuggestions     []string                `json:"guided_suggestions,omitempty"`
	ValidationError       bool                    `json:"validation_error,omitempty"`
	ProcessedInput        string                  `json:"processed_input,omitempty"`
}

type ConsentResult struct {
	BotResponse  string `json:"bot_response"`
	DataSaved    bool   `json:"data_saved"`
	ProfileSaved bool   `json:"profile_saved"`
}

type ConversationService interface {
	Start(ctx context.Context) (*StartResult, error)
	ProcessTurn(ctx context.Context, sessionID uuid.UUID, text string) (*TurnResult, error)
	History(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error)
	SetConsent(ctx context.Context, sessionID uuid.UUID, consent bool) (*ConsentResult, error)
}

type conversationService struct {
	log            *logger.Logger
	convRepo       repos.ConversationRepo
	msgRepo        repos.ChatMessageRepo
	normalizer     Normalizer
	selector       UniversitySelector
	profileCreator ProfileCreator
	aiClient       openai.Client
	locker         SessionLocker
}

func NewConversationService(
	log *logger.Logger,
	convRepo repos.ConversationRepo,
	msgRepo repos.ChatMessageRepo,
	normalizer Normalizer,
	selector UniversitySelector,
	profileCreator ProfileCreator,
	aiClient openai.Client,
	locker SessionLocker,
) ConversationService {
	return &conversationService{
		log:            log.With("service", "ConversationService"),
		convRepo:       convRepo,
		msgRepo:        msgRepo,
		normalizer:     normalizer,
		selector:       selector,
		profileCreator: profileCreator,
		aiClient:       aiClient,
		locker:         locker,
	}
}

func (cs *conversationService) Start(ctx context.Context) (*StartResult, error) {
	ctx = ctxutil.Default(ctx)

	conv, err := cs.convRepo.Create(ctx, nil, &types.ConversationSession{})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	question := questions[0]
	if _, err := cs.msgRepo.Append(ctx, nil, &types.ChatMessage{
		ConversationID: conv.ID,
		Sender:         types.SenderBot,
		MessageText:    welcomeMessage + " " + question,
		StepNumber:     firstStep,
	}); err != nil {
		cs.log.Warn("Failed to record welcome message", "session_id", conv.SessionID.String(), "error", err)
	}

	cs.log.Info("Conversation started", "session_id", conv.SessionID.String())
	return &StartResult{
		SessionID:   conv.SessionID,
		Message:     welcomeMessage,
		Question:    question,
		CurrentStep: firstStep,
		TotalSteps:  lastStep,
	}, nil
}

func (cs *conversationService) ProcessTurn(ctx context.Context, sessionID uuid.UUID, text string) (*TurnResult, error) {
	ctx = ctxutil.Default(ctx)

	locked, err := cs.locker.TryLock(ctx, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !locked {
		return nil, ErrSessionBusy
	}
	defer func() {
		// The request context may already be canceled here; the lock must
		// still be released or the session stays blocked until the TTL.
		unlockCtx := context.WithoutCancel(ctx)
		if uErr := cs.locker.Unlock(unlockCtx, sessionID.String()); uErr != nil {
			cs.log.Warn("Failed to release session lock", "session_id", sessionID.String(), "error", uErr)
		}
	}()

	conv, err := cs.convRepo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, repos.ErrConversationNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv.IsCompleted || conv.CurrentStep >= doneStep {
		return nil, ErrAlreadyCompleted
	}

	step := conv.CurrentStep

	if rejection := ValidateStep(step, text); rejection != nil {
		return &TurnResult{
			BotResponse:       rejection.Message,
			ConversationStep:  step,
			Completed:         false,
			GuidedSuggestions: suggestionsFor(step),
			ValidationError:   true,
		}, nil
	}

	processed := cs.normalizer.Normalize(ctx, step, text)
	conv.SetAnswer(step, strings.TrimSpace(text), processed)

	if step == lastStep {
		return cs.complete(ctx, conv, text, processed)
	}

	conv.CurrentStep = step + 1
	saved, err := cs.convRepo.SaveAtStep(ctx, nil, conv, step)
	if err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}
	if !saved {
		return nil, ErrSessionBusy
	}

	botText := questionFor(conv.CurrentStep, conv.ProcessedName)
	cs.appendTurnMessages(ctx, conv, step, text, botText)

	return &TurnResult{
		BotResponse:       botText,
		ConversationStep:  conv.CurrentStep,
		Completed:         false,
		GuidedSuggestions: suggestionsFor(conv.CurrentStep),
		ProcessedInput:    processed,
	}, nil
}

func (cs *conversationService) complete(ctx context.Context, conv *types.ConversationSession, rawText, processed string) (*TurnResult, error) {
	matches, err := cs.selector.Select(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to select universities: %w", err)
	}

	encoded, err := json.Marshal(matches)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recommendations: %w", err)
	}
	conv.SuggestedUniversities = encoded
	conv.CurrentStep = doneStep
	conv.IsCompleted = true
	now := time.Now().UTC()
	conv.CompletedAt = &now

	botText := cs.finalResponse(ctx, conv, matches)

	saved, err := cs.convRepo.SaveAtStep(ctx, nil, conv, lastStep)
	if err != nil {
		return nil, fmt.Errorf("failed to save completed conversation: %w", err)
	}
	if !saved {
		return nil, ErrSessionBusy
	}

	cs.appendTurnMessages(ctx, conv, lastStep, rawText, botText)
	cs.log.Info("Conversation completed", "session_id", conv.SessionID.String(), "recommendations", len(matches))

	return &TurnResult{
		BotResponse:           botText,
		ConversationStep:      doneStep,
		Completed:             true,
		SuggestedUniversities: matches,
		ProcessedInput:        processed,
	}, nil
}

func (cs *conversationService) appendTurnMessages(ctx context.Context, conv *types.ConversationSession, step int, userText, botText string) {
	if _, err := cs.msgRepo.Append(ctx, nil, &types.ChatMessage{
		ConversationID: conv.ID,
		Sender:         types.SenderUser,
		MessageText:    strings.TrimSpace(userText),
		StepNumber:     step,
	}); err != nil {
		cs.log.Warn("Failed to record user message", "session_id", conv.SessionID.String(), "error", err)
	}
	// The bot reply is tagged with the step the conversation moved to,
	// so (timestamp, step_number, sender) orders a turn's pair even when
	// both rows land on the same clock tick.
	if _, err := cs.msgRepo.Append(ctx, nil, &types.ChatMessage{
		ConversationID: conv.ID,
		Sender:         types.SenderBot,
		MessageText:    botText,
		StepNumber:     conv.CurrentStep,
	}); err != nil {
		cs.log.Warn("Failed to record bot message", "session_id", conv.SessionID.String(), "error", err)
	}
}

func (cs *conversationService) finalResponse(ctx context.Context, conv *types.ConversationSession, matches []types.UniversityMatch) string {
	fallback := fallbackFinalResponse(conv.ProcessedName, matches)
	if cs.aiClient == nil {
		return fallback
	}

	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	out, err := cs.aiClient.GenerateText(callCtx,
		"You are a friendly study-abroad counselor wrapping up a chat. Two or three sentences, warm, no markdown.",
		fmt.Sprintf("Write a closing message for %s. Open with \"Excellent choices, %s!\" and mention these recommended universities: %s. Ask whether we may save their details so a counselor can reach out.",
			conv.ProcessedName, conv.ProcessedName, strings.Join(names, ", ")),
	)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			cs.log.Warn("Final summary generation failed, using fallback", "error", err)
		}
		return fallback
	}
	return strings.TrimSpace(out)
}

func fallbackFinalResponse(name string, matches []types.UniversityMatch) string {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Excellent choices, %s! ", name)
	} else {
		b.WriteString("Excellent choices! ")
	}
	if len(matches) == 0 {
		b.WriteString("I couldn't find universities matching every preference, but a counselor can help you explore more options.")
	} else {
		b.WriteString("Based on your profile, here are my top picks: ")
		for i, m := range matches {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%s)", m.Name, m.Country)
		}
		b.WriteString(".")
	}
	b.WriteString(" Would you like me to save your details so one of our counselors can reach out?")
	return b.String()
}

func (cs *conversationService) History(ctx context.Context, sessionID uuid.UUID) ([]*types.ChatMessage, error) {
	ctx = ctxutil.Default(ctx)

	conv, err := cs.convRepo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, repos.ErrConversationNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return cs.msgRepo.ListByConversation(ctx, nil, conv.ID)
}

func (cs *conversationService) SetConsent(ctx context.Context, sessionID uuid.UUID, consent bool) (*ConsentResult, error) {
	ctx = ctxutil.Default(ctx)

	conv, err := cs.convRepo.GetBySessionID(ctx, nil, sessionID)
	if err != nil {
		if errors.Is(err, repos.ErrConversationNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	conv.DataSaveConsent = consent
	if err := cs.convRepo.Save(ctx, nil, conv); err != nil {
		return nil, fmt.Errorf("failed to save consent: %w", err)
	}

	if !consent {
		return &ConsentResult{
			BotResponse: "No problem, your details won't be saved. Good luck with your applications!",
			DataSaved:   true,
		}, nil
	}

	profileSaved, err := cs.profileCreator.CreateOrUpdate(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to create student profile: %w", err)
	}

	return &ConsentResult{
		BotResponse:  "Thanks! I've saved your details and one of our counselors will reach out soon. Good luck!",
		DataSaved:    true,
		ProfileSaved: profileSaved,
	}, nil
}

func questionFor(step int, name string) string {
	if step < firstStep || step > lastStep {
		return ""
	}
	q := questions[step-1]
	if step == 2 {
		if name == "" {
			name = "there"
		}
		return fmt.Sprintf(q, name)
	}
	return q
}

func suggestionsFor(step int) []string {
	return guidedSuggestions[step]
}
