package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"listings-api/config"
	"listings-api/dto"
	"listings-api/migrations"
	"listings-api/normalize"
	"listings-api/repositories"
	"listings-api/services"
	"listings-api/storage"
	"listings-api/utils"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type server struct {
	t      *testing.T
	router *gin.Engine
	cfg    *config.Config
	token  string
}

func newServer(t *testing.T, mutate ...func(*config.Config)) *server {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Storage.ImageDir = t.TempDir()
	for _, m := range mutate {
		m(cfg)
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	_, err = migrations.NewMigrator(db).Up()
	require.NoError(t, err)

	store, err := storage.NewLocalStore(cfg.Storage.ImageDir)
	require.NoError(t, err)

	log := zap.NewNop()
	repos := repositories.NewRepositories(db)
	cache := repositories.NewCacheRepository(repositories.CacheOptions{}, log)
	notifier := services.NewChangeNotifier(cache, nil, log)
	n := normalize.Default()
	auth := services.NewAuthService(repos.Users, utils.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), log)
	_, err = auth.EnsureAdmin(context.Background(), "admin", "s3cret")
	require.NoError(t, err)

	router := SetupRouter(cfg, db, Services{
		Auth:        auth,
		Listings:    services.NewListingService(repos, cache, store, notifier, n, log),
		Imports:     services.NewImportService(repos, store, notifier, n, log),
		Memos:       services.NewMemoService(repos.Listings, notifier, n, log),
		Images:      services.NewImageService(repos, store, notifier, n, log),
		Collections: services.NewCollectionService(repos, notifier, log),
	}, log)

	return &server{t: t, router: router, cfg: cfg}
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	if s.token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *server) json(method, path string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

// multipart posts files under field plus extra form values.
func (s *server) multipart(path, field string, files map[string][]byte, values map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(s.t, err)
		_, err = fw.Write(data)
		require.NoError(s.t, err)
	}
	for k, v := range values {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func (s *server) login() {
	w := s.json(http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: "admin", Password: "s3cret"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.LoginResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	s.token = resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createListing(t *testing.T, s *server, name, price string) uint {
	w := s.json(http.MethodPost, "/api/listings", dto.CreateListingRequest{BuildingName: name, Price: price})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}](t, w)
	return resp.Data.ID
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"up"`)
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/listings", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.json(http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode[dto.ErrorResponse](t, w).Error)

	w = s.json(http.MethodPost, "/api/auth/login", dto.LoginRequest{Username: "admin", Password: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, s.cfg.Auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"admin"`)
	assert.NotContains(t, w.Body.String(), "password")

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, http.StatusOK, s.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)
}

func TestListingEndpoints(t *testing.T) {
	s := newServer(t)
	s.login()

	id := createListing(t, s, "W타워3 A동 1203호", "2000/180")
	createListing(t, s, "지웰타워 801호", "3억5000")

	w := s.do(httptest.NewRequest(http.MethodGet, "/api/listings?category=rent&max_rent=200", nil))
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[dto.SearchResponse](t, w)
	require.Len(t, page.Results, 1)
	assert.Equal(t, id, page.Results[0].ID)
	assert.Equal(t, "2000/180", page.Results[0].PriceLabel)

	cases := []struct {
		path string
		code int
		kind string
	}{
		{"/api/listings?min_rent=abc", http.StatusBadRequest, "validation_error"},
		{"/api/listings?sort=cheapest", http.StatusBadRequest, "validation_error"},
		{"/api/listings?page_size=1000", http.StatusBadRequest, "validation_error"},
		{"/api/listings/abc", http.StatusBadRequest, "validation_error"},
		{"/api/listings/999", http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		w := s.do(httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.code, w.Code, tc.path)
		assert.Equal(t, tc.kind, decode[dto.ErrorResponse](t, w).Error, tc.path)
	}

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/listings/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[dto.StatsResponse](t, w)
	assert.EqualValues(t, 2, stats.Total)

	note := "주차 가능"
	w = s.json(http.MethodPut, fmt.Sprintf("/api/listings/%d/memo", id), dto.UpdateMemoRequest{Note: &note})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "주차 가능", decode[dto.MemoResponse](t, w).Note)

	w = s.json(http.MethodPost, "/api/listings/quick", dto.QuickEntryRequest{Text: "델타빌딩 301호\n임대 500/50"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, s.do(httptest.NewRequest(http.MethodDelete, "/api/listings", nil)).Code)
	w = s.do(httptest.NewRequest(http.MethodDelete, "/api/listings?confirm=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 3, decode[dto.DeleteAllResponse](t, w).Deleted)
}

func TestImportEndpoints(t *testing.T) {
	s := newServer(t)
	s.login()

	sheet := []byte("상세주소,매물가,전용면적\nW타워3 A동 1203호,\"2,000/180\",84.6\n지웰타워 801호,35000,120\n")

	w := s.multipart("/api/imports", "file", map[string][]byte{"list.csv": sheet}, map[string]string{"dry_run": "true"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode[dto.ImportReport](t, w)
	assert.True(t, report.DryRun)
	assert.Equal(t, 2, report.Inserted)

	w = s.multipart("/api/imports", "file", map[string][]byte{"list.csv": sheet}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, decode[dto.ImportReport](t, w).Inserted)

	w = s.multipart("/api/imports", "file", map[string][]byte{"list.csv": sheet}, map[string]string{"dry_run": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.multipart("/api/imports", "file", map[string][]byte{"list.pdf": sheet}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/imports/latest", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "list.csv")

	chat := "2025. 3. 4. 오후 2:13, 김중개 : W타워3 A동 1203호\n임대 2000/160"
	w = s.multipart("/api/memos/import", "file", map[string][]byte{"talk.txt": []byte(chat)}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[dto.MemoImportReport](t, w).Matched)
}

func TestImagesAndSharedCollection(t *testing.T) {
	s := newServer(t)
	s.login()
	shown := createListing(t, s, "지웰타워 801호", "35000")
	hidden := createListing(t, s, "델타빌딩", "500/50")

	// 1. Images
	w := s.multipart(fmt.Sprintf("/api/listings/%d/images", shown), "files", map[string][]byte{"front.png": pngBytes}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	shownImage := decode[dto.ImageUploadResponse](t, w).Images[0].ID

	w = s.multipart(fmt.Sprintf("/api/listings/%d/images", hidden), "files", map[string][]byte{"x.png": pngBytes}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	hiddenImage := decode[dto.ImageUploadResponse](t, w).Images[0].ID

	w = s.multipart(fmt.Sprintf("/api/listings/%d/images", shown), "files", map[string][]byte{"a.png": []byte("plain text")}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/images/%d", shownImage), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	// 2. Collection
	w = s.json(http.MethodPost, "/api/collections", dto.CreateCollectionRequest{Title: "고객 공유"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	collection := decode[struct {
		ID         uint   `json:"id"`
		ShareToken string `json:"share_token"`
	}](t, w)
	require.NotEmpty(t, collection.ShareToken)

	items := fmt.Sprintf("/api/collections/%d/items", collection.ID)
	assert.Equal(t, http.StatusCreated, s.json(http.MethodPost, items, dto.AddItemRequest{ListingID: shown}).Code)
	assert.Equal(t, http.StatusOK, s.json(http.MethodPost, items, dto.AddItemRequest{ListingID: shown}).Code)
	assert.Equal(t, http.StatusNotFound, s.json(http.MethodPost, items, dto.AddItemRequest{ListingID: 999}).Code)

	// 3. Public view without a token
	s.token = ""
	base := "/shared/collections/" + collection.ShareToken
	w = s.do(httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, w.Code)
	shared := decode[dto.SharedCollection](t, w)
	require.Len(t, shared.Items, 1)
	assert.Equal(t, []uint{shownImage}, shared.Items[0].ImageIDs)

	w = s.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("%s/images/%d", base, shownImage), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("%s/images/%d", base, hiddenImage), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, http.StatusNotFound, s.do(httptest.NewRequest(http.MethodGet, "/shared/collections/nope", nil)).Code)
}

func TestUploadBodyLimit(t *testing.T) {
	s := newServer(t, func(c *config.Config) { c.Server.MaxUploadMB = 1 })
	s.login()
	id := createListing(t, s, "델타빌딩", "500/50")

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 2<<20)...)
	w := s.multipart(fmt.Sprintf("/api/listings/%d/images", id), "files", map[string][]byte{"big.png": big}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/listings", nil)
	req.Header.Set("Origin", "http://office.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := s.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE"))
}

func TestForeignTokenRejected(t *testing.T) {
	s := newServer(t)
	jwt := utils.NewJWTManager("another-secret", time.Hour)
	forged, _, err := jwt.GenerateToken(1, "admin")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)
}
