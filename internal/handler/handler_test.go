package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/homepage-api/internal/config"
	"github.com/yourusername/homepage-api/internal/domain/entity"
	"github.com/yourusername/homepage-api/internal/metrics"
	"github.com/yourusername/homepage-api/internal/middleware"
	apperrors "github.com/yourusername/homepage-api/internal/pkg/errors"
	"github.com/yourusername/homepage-api/internal/repository/memory"
	"github.com/yourusername/homepage-api/internal/service"
	"github.com/yourusername/homepage-api/pkg/auth"
)

const testCookie = "homepage_session"

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// ============================================================================
// In-memory репозитории
// ============================================================================

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*entity.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return apperrors.ErrConflict
		}
	}
	if err := user.BeforeSave(nil); err != nil {
		return err
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) find(match func(*entity.User) bool) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uint) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *fakeUserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, userID uint, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if v, ok := updates["username"].(string); ok {
		u.Username = v
	}
	if v, ok := updates["bio"].(string); ok {
		u.Bio = v
	}
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, userID uint, newPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	u.Password = newPassword
	return u.BeforeSave(nil)
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	users    *fakeUserRepo
	nextID   uint
	messages map[uint]*entity.Message
	clock    time.Time
}

func newFakeMessageRepo(users *fakeUserRepo) *fakeMessageRepo {
	return &fakeMessageRepo{
		users:    users,
		messages: make(map[uint]*entity.Message),
		clock:    time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick выдает строго возрастающее время, чтобы порядок записей был детерминирован
func (r *fakeMessageRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Minute)
	return r.clock
}

func (r *fakeMessageRepo) Create(_ context.Context, m *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	m.CreatedAt = r.tick()
	stored := *m
	r.messages[m.ID] = &stored
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, id uint) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMessageRepo) ListWithReplies(ctx context.Context) ([]entity.Message, error) {
	r.mu.Lock()
	list := make([]entity.Message, 0, len(r.messages))
	for _, m := range r.messages {
		cp := *m
		cp.Replies = append([]entity.DeveloperReply(nil), m.Replies...)
		list = append(list, cp)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	for i := range list {
		if u, err := r.users.GetByID(ctx, list[i].UserID); err == nil {
			list[i].User = *u
		}
		for j := range list[i].Replies {
			if u, err := r.users.GetByID(ctx, list[i].Replies[j].DeveloperID); err == nil {
				list[i].Replies[j].Developer = *u
			}
		}
	}
	return list, nil
}

func (r *fakeMessageRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

func (r *fakeMessageRepo) CreateReply(_ context.Context, reply *entity.DeveloperReply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[reply.MessageID]
	if !ok {
		return apperrors.ErrNotFound
	}
	reply.ID = uint(len(m.Replies) + 1)
	reply.CreatedAt = r.tick()
	m.Replies = append(m.Replies, *reply)
	return nil
}

// ============================================================================
// Заглушки кодов и почты
// ============================================================================

type fixedGenerator struct{}

func (fixedGenerator) Generate(purpose entity.Purpose) (string, error) {
	if purpose == entity.PurposeImage {
		return "AB3X", nil
	}
	return "123456", nil
}

type echoRenderer struct{}

func (echoRenderer) Render(code string) (string, error) { return "png:" + code, nil }

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// ============================================================================
// Тестовое окружение: полный роутер на in-memory зависимостях
// ============================================================================

type testEnv struct {
	router   *gin.Engine
	users    *fakeUserRepo
	messages *fakeMessageRepo
	mailer   *recordingMailer
	sessions *auth.SessionManager
}

func testVerificationConfig() config.VerificationConfig {
	return config.VerificationConfig{
		Store:               "memory",
		ImageTTLSec:         300,
		EmailTTLSec:         300,
		ImageLimit:          config.LimitConfig{Ceiling: 10, WindowSec: 60},
		EmailIPLimit:        config.LimitConfig{Ceiling: 20, WindowSec: 3600},
		EmailRecipientLimit: config.LimitConfig{Ceiling: 5, WindowSec: 3600},
		StoreTimeoutSec:     2,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewVerificationStore()
	users := newFakeUserRepo()
	messages := newFakeMessageRepo(users)
	mailer := &recordingMailer{}

	sessions, err := auth.NewSessionManager("test-secret", time.Hour, store)
	require.NoError(t, err)

	vcfg := testVerificationConfig()
	verification := service.NewVerificationService(
		store,
		service.NewRateLimiter(store, vcfg),
		fixedGenerator{},
		echoRenderer{},
		mailer,
		users,
		vcfg,
		time.Second,
		metrics.New(),
		log,
	)
	authService := service.NewAuthService(users, verification, sessions, log)
	messageService := service.NewMessageService(messages, 1000, log)

	router := gin.New()
	RegisterRoutes(router, Routes{
		Auth:      NewAuthHandler(authService, config.SessionConfig{CookieName: testCookie, TTLHours: 1}, log),
		Captcha:   NewCaptchaHandler(verification, log),
		Messages:  NewMessageHandler(messageService, log),
		Health:    NewHealthHandler(stubPinger{}, store, "memory", log),
		AuthMW:    middleware.NewAuthMiddleware(sessions, testCookie, log),
		RateLimit: middleware.NewRateLimiter(store, log),
		Throttle:  middleware.NewPostThrottle(60, 2),
	})

	return &testEnv{router: router, users: users, messages: messages, mailer: mailer, sessions: sessions}
}

// do выполняет JSON запрос; cookie может быть nil
func (e *testEnv) do(method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		raw, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// createUser добавляет пользователя напрямую в репозиторий
func (e *testEnv) createUser(t *testing.T, username, email, password, role string) *entity.User {
	t.Helper()
	user := &entity.User{Username: username, Email: email, Password: password, Role: role}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

// sessionFor выпускает cookie сессии для пользователя
func (e *testEnv) sessionFor(t *testing.T, user *entity.User) *http.Cookie {
	t.Helper()
	token, _, err := e.sessions.Issue(user)
	require.NoError(t, err)
	return &http.Cookie{Name: testCookie, Value: token}
}

// parseJSONResponse парсит JSON ответ из *httptest.ResponseRecorder
func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err, "Response body should be valid JSON: %s", w.Body.String())
	return resp
}
