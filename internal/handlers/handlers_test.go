package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/cache"
	"github.com/craftora/marketplace/internal/hash"
	"github.com/craftora/marketplace/internal/mail"
	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/payments"
	"github.com/craftora/marketplace/internal/service/token"
	transport "github.com/craftora/marketplace/internal/transport/http"
	"github.com/craftora/marketplace/internal/validate"
)

// fakePublisher records events instead of talking to kafka.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Topic string
	Key   string
	Event map[string]any
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, event map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Topic: topic, Key: key, Event: event})
	return nil
}

func (f *fakePublisher) byType(typ string) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, e := range f.events {
		if e.Event["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	e        *echo.Echo
	db       *gorm.DB
	tokens   *token.Service
	producer *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(models.All()...))

	tokens := &token.Service{
		DB:            gdb,
		JWTSecret:     []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	producer := &fakePublisher{}
	mailer, err := mail.New(mail.Config{})
	require.NoError(t, err)

	e := echo.New()
	e.Validator = validate.New()
	transport.Register(e, transport.Deps{
		DB:        gdb,
		Tokens:    tokens,
		Producer:  producer,
		Mailer:    mailer,
		Cache:     cache.New(""),
		Payments:  payments.MockProvider{},
		UploadDir: t.TempDir(),
	})

	return &testEnv{e: e, db: gdb, tokens: tokens, producer: producer}
}

func (env *testEnv) doJSON(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// seedUser creates a user directly and returns a valid bearer token.
func (env *testEnv) seedUser(t *testing.T, email, role string) (models.User, string) {
	t.Helper()
	pw, err := hash.HashPassword("password123")
	require.NoError(t, err)
	u := models.User{
		Name: "Test User", Email: email, PasswordHash: pw,
		Role: role, Approved: true,
	}
	require.NoError(t, env.db.Create(&u).Error)
	access, err := env.tokens.SignAccess(u.ID, u.Role)
	require.NoError(t, err)
	return u, access
}

func (env *testEnv) seedProduct(t *testing.T, vendorID uint, title string, price float64, stock uint) models.Product {
	t.Helper()
	p := models.Product{
		VendorID: vendorID, Title: title, Description: "desc",
		Price: price, Category: "misc", Stock: stock,
	}
	require.NoError(t, env.db.Create(&p).Error)
	return p
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}
