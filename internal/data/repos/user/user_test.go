package user

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/scoolish-backend/internal/data/repos/testutil"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewUserRepo(db, testutil.Logger(t))

	u := &types.User{Username: "Ada", Email: "ada@example.com", PasswordHash: "h"}
	if err := repo.Create(dbc, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, login := range []string{"ada", "ADA@example.com"} {
		got, err := repo.GetByLogin(dbc, login)
		if err != nil || got == nil || got.ID != u.ID {
			t.Fatalf("GetByLogin(%q): %+v %v", login, got, err)
		}
	}
	if got, _ := repo.GetByLogin(dbc, "nobody"); got != nil {
		t.Fatalf("unexpected user: %+v", got)
	}

	if err := repo.UpdateFields(dbc, u.ID, map[string]interface{}{"account_type": "learner"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ := repo.GetByID(dbc, u.ID)
	if got.AccountType != "learner" || got.OnboardingStatus != "pending" {
		t.Fatalf("GetByID: %+v", got)
	}

	if p, err := repo.GetProfile(dbc, u.ID); err != nil || p != nil {
		t.Fatalf("GetProfile before upsert: %+v %v", p, err)
	}
	p := &types.Profile{UserID: u.ID, AccountType: "learner", Details: datatypes.JSON(`{"school":"A"}`)}
	if err := repo.UpsertProfile(dbc, p); err != nil {
		t.Fatalf("UpsertProfile: %v", err)
	}
	p2 := &types.Profile{UserID: u.ID, AccountType: "learner", Details: datatypes.JSON(`{"school":"B"}`)}
	if err := repo.UpsertProfile(dbc, p2); err != nil {
		t.Fatalf("UpsertProfile again: %v", err)
	}
	prof, err := repo.GetProfile(dbc, u.ID)
	if err != nil || prof == nil || string(prof.Details) != `{"school":"B"}` {
		t.Fatalf("GetProfile: %+v %v", prof, err)
	}
}
