package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/domain/files"
	"github.com/yungbote/scoolish-backend/internal/domain/progress"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *types.User {
	tb.Helper()
	u := &types.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedFile(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, originalName string) *types.UploadedFile {
	tb.Helper()
	f := &types.UploadedFile{
		UserID:           userID,
		OriginalFileName: originalName,
		StoredFileName:   fmt.Sprintf("%d_%s", time.Now().UnixNano(), originalName),
		FilePath:         userID + "/uploads/" + originalName,
		FileType:         files.TypeDocument,
		Status:           files.StatusReady,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed file: %v", err)
	}
	return f
}

func SeedPages(tb testing.TB, ctx context.Context, tx *gorm.DB, fileID uuid.UUID, texts ...string) []*types.FilePage {
	tb.Helper()
	out := make([]*types.FilePage, 0, len(texts))
	for i, t := range texts {
		p := &types.FilePage{FileID: fileID, PageNumber: i + 1, PageText: t}
		if err := tx.WithContext(ctx).Create(p).Error; err != nil {
			tb.Fatalf("seed page: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, tool string, fileID *uuid.UUID) *types.Progress {
	tb.Helper()
	p := &types.Progress{
		UserID: userID,
		Tool:   tool,
		FileID: fileID,
		Status: progress.StatusInProgress,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrInt(v int) *int { return &v }
