package notes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/ai"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/styles"
)

type fakeBlobStore struct {
	objects   map[string][]byte
	uploadErr error
	removeErr error
	removed   []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Upload(_ context.Context, path string, audio []byte, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[path] = audio
	return nil
}

func (f *fakeBlobStore) Remove(_ context.Context, path string) error {
	f.removed = append(f.removed, path)
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, path)
	return nil
}

type fakeRewriteClient struct {
	transcript    string
	transcribeErr error
	result        ai.RewriteResult
	rewriteErr    error
}

func (f *fakeRewriteClient) Transcribe(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	if f.transcribeErr != nil {
		return "", f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeRewriteClient) Rewrite(_ context.Context, _, _ string, _ styles.WritingStyle) (ai.RewriteResult, error) {
	if f.rewriteErr != nil {
		return ai.RewriteResult{}, f.rewriteErr
	}
	return f.result, nil
}

type fakePremiumChecker struct {
	premium bool
	err     error
}

func (f *fakePremiumChecker) IsPremium(_ context.Context, _ string) (bool, error) {
	return f.premium, f.err
}

type sequentialIDProvider struct {
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("note-%d", p.next), nil
}

type testDeps struct {
	service *Service
	repo    *Repository
	blobs   *fakeBlobStore
	ai      *fakeRewriteClient
	premium *fakePremiumChecker
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:walknote_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Note{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newTestDeps(t *testing.T) testDeps {
	t.Helper()
	repo, err := NewRepository(openTestDatabase(t))
	if err != nil {
		t.Fatalf("unexpected repository error: %v", err)
	}
	blobs := newFakeBlobStore()
	rewriter := &fakeRewriteClient{
		transcript: "uh so today I walked and thought about the launch",
		result: ai.RewriteResult{
			Title:             "Launch Thoughts",
			Content:           "Today I thought about the launch.",
			TranscriptSummary: "Thoughts about the launch.",
		},
	}
	premium := &fakePremiumChecker{}
	service, err := NewService(ServiceConfig{
		Repository: repo,
		Blobs:      blobs,
		AI:         rewriter,
		Premium:    premium,
		Clock:      func() time.Time { return time.UnixMilli(1700000000000) },
		IDProvider: &sequentialIDProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return testDeps{service: service, repo: repo, blobs: blobs, ai: rewriter, premium: premium}
}

func validCreateRequest(userID string) CreateRequest {
	return CreateRequest{
		UserID:   userID,
		StyleID:  "cut-fluff",
		Audio:    []byte{1, 2, 3, 4},
		Filename: "walknote-1.webm",
		MIMEType: "audio/webm",
	}
}

func insertCompletedNote(t *testing.T, repo *Repository, id, userID string, createdAt time.Time) Note {
	t.Helper()
	summary := "summary"
	note := Note{
		ID:                id,
		UserID:            userID,
		StyleID:           "cut-fluff",
		StyleName:         "Cut Fluff",
		StyleDescription:  "desc",
		Title:             "Title " + id,
		Content:           "Content " + id,
		Transcript:        "Transcript " + id,
		TranscriptSummary: &summary,
		AudioPath:         userID + "/" + id + ".webm",
		AudioMIMEType:     "audio/webm",
		Status:            StatusCompleted,
		CreatedAt:         createdAt,
	}
	if err := repo.Insert(context.Background(), &note); err != nil {
		t.Fatalf("failed to seed note %s: %v", id, err)
	}
	return note
}

func mustCount(t *testing.T, repo *Repository, userID string) int64 {
	t.Helper()
	count, err := repo.CountCompleted(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	return count
}

var errBoom = errors.New("boom")
