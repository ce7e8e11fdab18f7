package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scholarport/backend/internal/pkg/ctxutil"
	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/repos"
	"github.com/scholarport/backend/internal/types"
)

// ProfileSink receives a denormalized profile snapshot, best effort.
// The GCS client satisfies this; tests use fakes.
type ProfileSink interface {
	Save(ctx context.Context, key string, snapshot map[string]any) error
}

// ProfileCreator turns a completed, consented conversation into a
// StudentProfile. The local write is authoritative; the returned bool
// reports whether the sink write also succeeded.
type ProfileCreator interface {
	CreateOrUpdate(ctx context.Context, conv *types.ConversationSession) (bool, error)
}

type profileCreator struct {
	log         *logger.Logger
	profileRepo repos.StudentProfileRepo
	sink        ProfileSink
}

// NewProfileCreator builds a profile creator. A nil sink disables
// forwarding; profiles are then local only.
func NewProfileCreator(log *logger.Logger, profileRepo repos.StudentProfileRepo, sink ProfileSink) ProfileCreator {
	return &profileCreator{
		log:         log.With("service", "ProfileCreator"),
		profileRepo: profileRepo,
		sink:        sink,
	}
}

func (pc *profileCreator) CreateOrUpdate(ctx context.Context, conv *types.ConversationSession) (bool, error) {
	ctx = ctxutil.Default(ctx)

	profile, err := pc.profileRepo.GetByConversationID(ctx, nil, conv.ID)
	if err != nil {
		if !errors.Is(err, repos.ErrProfileNotFound) {
			return false, fmt.Errorf("failed to look up existing profile: %w", err)
		}
		profile = &types.StudentProfile{ConversationID: conv.ID}
	}

	prefs := ExtractPreferences(conv)

	profile.SessionID = conv.SessionID
	profile.Name = firstNonEmpty(prefs.Name, "Unknown")
	profile.Email = firstNonEmpty(conv.ProcessedEmail, conv.RawFor(6))
	profile.Phone = firstNonEmpty(conv.ProcessedPhone, conv.RawFor(7))
	profile.EducationLevel = EducationLevel(prefs.Education)
	profile.BudgetAmount = prefs.Budget.Amount
	profile.BudgetCurrency = prefs.Budget.Currency
	profile.TestType = prefs.Test.Type
	profile.TestScore = prefs.Test.Score
	profile.PreferredCountry = prefs.Country
	profile.RecommendedUniversities = conv.SuggestedUniversities

	if err := pc.profileRepo.Save(ctx, nil, profile); err != nil {
		return false, fmt.Errorf("failed to save student profile: %w", err)
	}

	synced := pc.forwardToSink(ctx, profile, conv)
	if synced != profile.SyncedToSink {
		profile.SyncedToSink = synced
		if err := pc.profileRepo.Save(ctx, nil, profile); err != nil {
			pc.log.Warn("Failed to record sink sync state", "conversation_id", conv.ID.String(), "error", err)
		}
	}

	pc.log.Info("Student profile saved", "conversation_id", conv.ID.String(), "synced_to_sink", synced)
	return synced, nil
}

// forwardToSink is best effort. Failures are logged and surfaced only
// through the returned bool; the local record stands regardless.
func (pc *profileCreator) forwardToSink(ctx context.Context, profile *types.StudentProfile, conv *types.ConversationSession) bool {
	if pc.sink == nil {
		return false
	}
	snapshot := buildProfileSnapshot(profile, conv)
	if err := pc.sink.Save(ctx, profile.ConversationID.String(), snapshot); err != nil {
		pc.log.Warn("Profile sink write failed", "conversation_id", conv.ID.String(), "error", err)
		return false
	}
	return true
}

func buildProfileSnapshot(profile *types.StudentProfile, conv *types.ConversationSession) map[string]any {
	var recommendations []map[string]any
	if len(conv.SuggestedUniversities) > 0 {
		_ = json.Unmarshal(conv.SuggestedUniversities, &recommendations)
	}
	return map[string]any{
		"student_info": map[string]any{
			"name":              profile.Name,
			"email":             profile.Email,
			"phone":             profile.Phone,
			"education_level":   profile.EducationLevel,
			"budget_amount":     profile.BudgetAmount,
			"budget_currency":   profile.BudgetCurrency,
			"test_type":         profile.TestType,
			"test_score":        profile.TestScore,
			"preferred_country": profile.PreferredCountry,
		},
		"conversation_data": map[string]any{
			"session_id":   conv.SessionID.String(),
			"completed_at": conv.CompletedAt,
			"consent":      conv.DataSaveConsent,
		},
		"recommendations": recommendations,
		"metadata": map[string]any{
			"source":   "scholarport_chat",
			"saved_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
}
