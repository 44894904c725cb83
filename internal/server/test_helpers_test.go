package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/MarcoPoloResearchLab/walknote/backend/internal/ai"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/billing"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/styles"
	"github.com/MarcoPoloResearchLab/walknote/backend/internal/users"
)

type stubSessions struct {
	userID string
	err    error
}

func (s *stubSessions) ValidateRequest(_ *http.Request) (auth.SessionClaims, error) {
	if s.err != nil {
		return auth.SessionClaims{}, s.err
	}
	return auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: s.userID},
	}, nil
}

type fakeBlobStore struct {
	objects   map[string][]byte
	uploadErr error
	removeErr error
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
}

func (f *fakeRewriteClient) Transcribe(_ context.Context, _ string, _ []byte, _ string) (string, error) {
	if f.transcribeErr != nil {
		return "", f.transcribeErr
	}
	return f.transcript, nil
}

func (f *fakeRewriteClient) Rewrite(_ context.Context, _, _ string, _ styles.WritingStyle) (ai.RewriteResult, error) {
	return f.result, nil
}

type testEnv struct {
	handler  http.Handler
	sessions *stubSessions
	blobs    *fakeBlobStore
	rewriter *fakeRewriteClient
	notes    *notes.Service
	users    *users.Service
	repo     *notes.Repository
	secret   string
}

func testWebhookSecret() string {
	return base64.StdEncoding.EncodeToString([]byte("test-webhook-secret-0123456789ab"))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&notes.Note{}, &users.User{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	usersService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected users service error: %v", err)
	}

	repo, err := notes.NewRepository(db)
	if err != nil {
		t.Fatalf("unexpected repository error: %v", err)
	}

	blobs := newFakeBlobStore()
	rewriter := &fakeRewriteClient{
		transcript: "today was a good walk",
		result: ai.RewriteResult{
			Title:             "Good Walk",
			Content:           "Today was a good walk.",
			TranscriptSummary: "A good walk.",
		},
	}

	notesService, err := notes.NewService(notes.ServiceConfig{
		Repository: repo,
		Blobs:      blobs,
		AI:         rewriter,
		Premium:    usersService,
	})
	if err != nil {
		t.Fatalf("unexpected notes service error: %v", err)
	}

	secret := testWebhookSecret()
	webhooks, err := billing.NewProcessor(secret, usersService, nil)
	if err != nil {
		t.Fatalf("unexpected processor error: %v", err)
	}

	sessions := &stubSessions{userID: "user-1"}
	handler, err := NewHTTPHandler(Dependencies{
		Sessions:     sessions,
		NotesService: notesService,
		UsersService: usersService,
		Webhooks:     webhooks,
	})
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	return &testEnv{
		handler:  handler,
		sessions: sessions,
		blobs:    blobs,
		rewriter: rewriter,
		notes:    notesService,
		users:    usersService,
		repo:     repo,
		secret:   secret,
	}
}

func (env *testEnv) do(t *testing.T, request *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	return recorder
}

func newAudioRequest(t *testing.T, styleID, filename string, audio []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if styleID != "" {
		if err := writer.WriteField("styleId", styleID); err != nil {
			t.Fatalf("failed to write style field: %v", err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatalf("failed to create audio part: %v", err)
		}
		if _, err := part.Write(audio); err != nil {
			t.Fatalf("failed to write audio part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	request := httptest.NewRequest(http.MethodPost, "/notes", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func createNoteViaAPI(t *testing.T, env *testEnv) map[string]interface{} {
	t.Helper()
	recorder := env.do(t, newAudioRequest(t, "cut-fluff", "walknote.webm", []byte{1, 2, 3}))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200 creating note, got %d: %s", recorder.Code, recorder.Body.String())
	}
	return decodeBody(t, recorder)
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
	return payload
}

var errStubUnauthorized = errors.New("no session")
