package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domuser "github.com/yungbote/scoolish-backend/internal/domain/user"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

const (
	maxProfileItems   = 20
	maxProfileItemLen = 60
)

type OnboardingState struct {
	AccountType      string         `json:"account_type"`
	OnboardingStatus string         `json:"onboarding_status"`
	HasProfile       bool           `json:"has_profile"`
	Profile          map[string]any `json:"profile,omitempty"`
}

type OnboardingService interface {
	State(dbc dbctx.Context, userID string) (*OnboardingState, error)
	// Submit validates the answers for payload["account_type"], stores the
	// profile and marks onboarding completed.
	Submit(dbc dbctx.Context, userID string, payload map[string]any) (*types.User, error)
}

type onboardingService struct {
	db             *gorm.DB
	log            *logger.Logger
	users          repos.UserRepo
	allowOrgSignup bool
}

func NewOnboardingService(db *gorm.DB, baseLog *logger.Logger, users repos.UserRepo, allowOrgSignup bool) OnboardingService {
	return &onboardingService{
		db:             db,
		log:            baseLog.With("service", "OnboardingService"),
		users:          users,
		allowOrgSignup: allowOrgSignup,
	}
}

func (s *onboardingService) user(dbc dbctx.Context, userID string) (*types.User, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_identity", fmt.Errorf("%w: invalid token identity", apierr.ErrUnauthorized))
	}
	u, err := s.users.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, apierr.NotFound("user_not_found", "user not found")
	}
	return u, nil
}

func (s *onboardingService) State(dbc dbctx.Context, userID string) (*OnboardingState, error) {
	u, err := s.user(dbc, userID)
	if err != nil {
		return nil, err
	}
	out := &OnboardingState{AccountType: u.AccountType, OnboardingStatus: u.OnboardingStatus}
	p, err := s.users.GetProfile(dbc, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if p != nil && p.AccountType == u.AccountType {
		out.HasProfile = true
		_ = json.Unmarshal(p.Details, &out.Profile)
	}
	return out, nil
}

func (s *onboardingService) Submit(dbc dbctx.Context, userID string, payload map[string]any) (*types.User, error) {
	u, err := s.user(dbc, userID)
	if err != nil {
		return nil, err
	}
	accountType := strings.ToLower(strings.TrimSpace(asString(payload["account_type"])))
	if !ValidAccountType(accountType) {
		return nil, apierr.BadRequest("invalid_account_type", "Invalid account_type")
	}

	existing, err := s.users.GetProfile(dbc, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if accountType == domuser.AccountOrganization && !s.allowOrgSignup {
		if existing == nil || existing.SubscriptionStatus != "active" {
			return nil, apierr.New(http.StatusPaymentRequired, "ORG_SUBSCRIPTION_REQUIRED",
				errors.New("Organization signup requires active subscription"))
		}
	}

	details, err := ValidateProfile(accountType, payload)
	if err != nil {
		return nil, apierr.New(http.StatusBadRequest, "invalid_profile", fmt.Errorf("%w: %v", apierr.ErrInvalidArgument, err))
	}
	b, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	err = s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		p := &types.Profile{UserID: u.ID, AccountType: accountType, Details: datatypes.JSON(b)}
		if existing != nil {
			p.CreatedAt = existing.CreatedAt
			p.SubscriptionStatus = existing.SubscriptionStatus
		}
		if err := s.users.UpsertProfile(inner, p); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		return s.users.UpdateFields(inner, u.ID, map[string]interface{}{
			"account_type":      accountType,
			"onboarding_status": domuser.OnboardingCompleted,
		})
	})
	if err != nil {
		return nil, err
	}
	u.AccountType = accountType
	u.OnboardingStatus = domuser.OnboardingCompleted
	s.log.Info("Onboarding completed", "user_id", u.ID, "account_type", accountType)
	return u, nil
}

func ValidAccountType(t string) bool {
	switch t {
	case domuser.AccountLearner, domuser.AccountEducator, domuser.AccountProfessional, domuser.AccountOrganization:
		return true
	}
	return false
}

// ValidateProfile returns the cleaned profile fields for one account type.
func ValidateProfile(accountType string, p map[string]any) (map[string]any, error) {
	var v profileValidator
	out := map[string]any{}
	switch accountType {
	case domuser.AccountLearner:
		out["school"] = v.required(p, "school")
		out["class_name"] = v.required(p, "class_name")
		out["favorite_subjects"] = v.list(p, "favorite_subjects")
		out["hobbies"] = v.list(p, "hobbies")
		out["interests"] = v.list(p, "interests")
	case domuser.AccountEducator:
		out["school"] = v.required(p, "school")
		out["subjects"] = v.list(p, "subjects")
		out["classes_taught"] = v.list(p, "classes_taught")
		out["students_count"] = v.count(p, "students_count")
		out["years_experience"] = v.count(p, "years_experience")
		out["hobbies"] = v.list(p, "hobbies")
	case domuser.AccountProfessional:
		out["sector"] = v.required(p, "sector")
		out["job_title"] = v.required(p, "job_title")
		out["designation"] = v.required(p, "designation")
		out["years_experience"] = v.count(p, "years_experience")
		out["skills"] = v.list(p, "skills")
		out["interests"] = v.list(p, "interests")
		out["hobbies"] = v.list(p, "hobbies")
	case domuser.AccountOrganization:
		out["org_name"] = v.required(p, "org_name")
		out["contact_email"] = v.required(p, "contact_email")
		out["website"] = v.optional(p, "website")
	default:
		return nil, fmt.Errorf("Unsupported account type")
	}
	if v.err != nil {
		return nil, v.err
	}
	return out, nil
}

// profileValidator keeps the first failure so field checks can be chained.
type profileValidator struct{ err error }

func (v *profileValidator) fail(format string, args ...any) {
	if v.err == nil {
		v.err = fmt.Errorf(format, args...)
	}
}

func (v *profileValidator) required(p map[string]any, field string) string {
	s, ok := p[field].(string)
	if !ok || strings.TrimSpace(s) == "" {
		v.fail("%s is required", field)
		return ""
	}
	return strings.TrimSpace(s)
}

func (v *profileValidator) optional(p map[string]any, field string) any {
	raw, present := p[field]
	if !present || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		v.fail("%s must be a string", field)
		return nil
	}
	return strings.TrimSpace(s)
}

func (v *profileValidator) list(p map[string]any, field string) []string {
	raw, present := p[field]
	if !present || raw == nil {
		return []string{}
	}
	items, ok := raw.([]any)
	if !ok {
		v.fail("%s must be a list", field)
		return nil
	}
	if len(items) > maxProfileItems {
		v.fail("%s can have at most %d items", field, maxProfileItems)
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			v.fail("%s items must be strings", field)
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len([]rune(s)) > maxProfileItemLen {
			v.fail("%s items must be <= %d characters", field, maxProfileItemLen)
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (v *profileValidator) count(p map[string]any, field string) int {
	f, ok := p[field].(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		v.fail("%s must be a non-negative integer", field)
		return 0
	}
	return int(f)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
