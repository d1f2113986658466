package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"tally/internal/config"
	"tally/internal/ledger"
	"tally/internal/logger"
	"tally/internal/middleware"
	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/services"
	"tally/internal/validator"
)

const testUserID = "0190a6b4-0000-7000-8000-000000000001"

// --- mock services ---

type mockUserService struct {
	createUserFn   func(email, password, firstName, lastName string) (*models.User, error)
	getUserByIDFn  func(id string) (*models.User, error)
	attemptLoginFn func(email, password string) (*models.User, error)
}

func (m *mockUserService) CreateUser(_ context.Context, email, password, firstName, lastName string) (*models.User, error) {
	if m.createUserFn != nil {
		return m.createUserFn(email, password, firstName, lastName)
	}
	return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
}

func (m *mockUserService) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
}

func (m *mockUserService) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool { return true }

func (m *mockUserService) AttemptLogin(_ context.Context, email, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(email, password)
	}
	return &models.User{Base: models.Base{ID: testUserID}, Email: email}, nil
}

type auditRecord struct {
	UserID, Action, ResourceType, ResourceID string
}

type mockAuditService struct {
	mu      sync.Mutex
	records []auditRecord
}

func (m *mockAuditService) Log(_ context.Context, userID, action, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, auditRecord{userID, action, resourceType, resourceID})
}

func (m *mockAuditService) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Action)
	}
	return out
}

type mockCategoryService struct {
	createCategoryFn    func(userID, name string, t models.CategoryType, icon string) (*models.Category, error)
	getUserCategoriesFn func(userID string, t *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	deleteCategoryFn    func(userID, name string, t models.CategoryType) error
}

func (m *mockCategoryService) Lookup(_ context.Context, _, _ string, _ models.CategoryType) (*models.Category, bool, error) {
	return nil, false, nil
}

func (m *mockCategoryService) CreateCategory(_ context.Context, userID, name string, t models.CategoryType, icon string) (*models.Category, error) {
	if m.createCategoryFn != nil {
		return m.createCategoryFn(userID, name, t, icon)
	}
	return &models.Category{Base: models.Base{ID: "cat-1"}, UserID: userID, Name: name, Type: t, Icon: icon}, nil
}

func (m *mockCategoryService) GetUserCategories(_ context.Context, userID string, t *models.CategoryType, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	if m.getUserCategoriesFn != nil {
		return m.getUserCategoriesFn(userID, t, page)
	}
	resp := pagination.NewPageResponse([]models.Category{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockCategoryService) DeleteCategory(_ context.Context, userID, name string, t models.CategoryType) error {
	if m.deleteCategoryFn != nil {
		return m.deleteCategoryFn(userID, name, t)
	}
	return nil
}

type mockSettingsService struct {
	updateCurrencyFn func(userID, currency string) (*models.UserSettings, error)
}

func (m *mockSettingsService) GetSettings(_ context.Context, userID string) (*models.UserSettings, error) {
	return &models.UserSettings{UserID: userID, Currency: models.DefaultCurrency}, nil
}

func (m *mockSettingsService) UpdateCurrency(_ context.Context, userID, currency string) (*models.UserSettings, error) {
	if m.updateCurrencyFn != nil {
		return m.updateCurrencyFn(userID, currency)
	}
	return &models.UserSettings{UserID: userID, Currency: currency}, nil
}

type mockEntryService struct {
	createEntryFn  func(ownerID string, in ledger.CreateEntryInput) (*models.Entry, error)
	deleteEntryFn  func(ownerID, entryID string) (*models.Entry, error)
	getEntryByIDFn func(ownerID, entryID string) (*models.Entry, error)
	historyFn      func(ownerID string, f ledger.EntryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Entry], error)
}

func (m *mockEntryService) CreateEntry(_ context.Context, ownerID string, in ledger.CreateEntryInput) (*models.Entry, error) {
	if m.createEntryFn != nil {
		return m.createEntryFn(ownerID, in)
	}
	return &models.Entry{Base: models.Base{ID: "entry-1"}, UserID: ownerID, Type: in.Type, Category: in.Category, Date: in.Date}, nil
}

func (m *mockEntryService) DeleteEntry(_ context.Context, ownerID, entryID string) (*models.Entry, error) {
	if m.deleteEntryFn != nil {
		return m.deleteEntryFn(ownerID, entryID)
	}
	return &models.Entry{Base: models.Base{ID: entryID}, UserID: ownerID}, nil
}

func (m *mockEntryService) GetEntryByID(_ context.Context, ownerID, entryID string) (*models.Entry, error) {
	if m.getEntryByIDFn != nil {
		return m.getEntryByIDFn(ownerID, entryID)
	}
	return &models.Entry{Base: models.Base{ID: entryID}, UserID: ownerID}, nil
}

func (m *mockEntryService) GetEntryHistory(_ context.Context, ownerID string, f ledger.EntryFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Entry], error) {
	if m.historyFn != nil {
		return m.historyFn(ownerID, f, page)
	}
	resp := pagination.NewPageResponse([]models.Entry{}, 1, 20, 0)
	return &resp, nil
}

type mockStatsService struct {
	balanceFn    func(ownerID string, from, to time.Time) (*ledger.Balance, error)
	breakdownFn  func(ownerID string, from, to time.Time) ([]ledger.CategoryTotal, error)
	timeSeriesFn func(ownerID string, q ledger.TimeSeriesQuery) ([]ledger.Period, error)
	yearsFn      func(ownerID string) ([]int, error)
}

func (m *mockStatsService) GetBalance(_ context.Context, ownerID string, from, to time.Time) (*ledger.Balance, error) {
	if m.balanceFn != nil {
		return m.balanceFn(ownerID, from, to)
	}
	return &ledger.Balance{}, nil
}

func (m *mockStatsService) GetCategoryBreakdown(_ context.Context, ownerID string, from, to time.Time) ([]ledger.CategoryTotal, error) {
	if m.breakdownFn != nil {
		return m.breakdownFn(ownerID, from, to)
	}
	return nil, nil
}

func (m *mockStatsService) GetTimeSeries(_ context.Context, ownerID string, q ledger.TimeSeriesQuery) ([]ledger.Period, error) {
	if m.timeSeriesFn != nil {
		return m.timeSeriesFn(ownerID, q)
	}
	return nil, nil
}

func (m *mockStatsService) GetAvailableYears(_ context.Context, ownerID string) ([]int, error) {
	if m.yearsFn != nil {
		return m.yearsFn(ownerID)
	}
	return []int{2024}, nil
}

var (
	_ services.UserServicer     = (*mockUserService)(nil)
	_ services.AuditServicer    = (*mockAuditService)(nil)
	_ services.CategoryServicer = (*mockCategoryService)(nil)
	_ services.SettingsServicer = (*mockSettingsService)(nil)
	_ ledger.EntryServicer      = (*mockEntryService)(nil)
	_ ledger.StatsServicer      = (*mockStatsService)(nil)
)

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
	config.Set(&config.Config{JWTSecret: "handler-test-secret", JWTExpirationDur: time.Hour})
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}
