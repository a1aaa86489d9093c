package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"prok/internal/cache"
	"prok/internal/config"
	"prok/internal/database"
	"prok/internal/featureflags"
	"prok/internal/middleware"
	"prok/internal/repository"
	"prok/internal/service"
	"prok/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer wires a full server against a throwaway SQLite database,
// an in-memory cache and local blob storage. Prometheus middleware is left
// unset so repeated app construction does not re-register collectors.
func newTestServer(t *testing.T) (*fiber.App, *Server) {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	cfg := &config.Config{
		JWTSecret:         "test_secret",
		Port:              "8375",
		BackendURL:        "http://localhost:8375",
		Env:               "test",
		StorageDriver:     "local",
		UploadDir:         filepath.Join(dir, "uploads"),
		MaxMediaBytes:     20 * 1024 * 1024,
		MaxAvatarBytes:    5 * 1024 * 1024,
		AllowedExtensions: "png,jpg,jpeg,mp4,webm",
	}
	middleware.InitMiddleware(cfg)

	blobs, err := storage.NewLocalStore(cfg.UploadDir)
	require.NoError(t, err)

	userRepo := repository.NewUserRepository(db)
	cacheStore := cache.NewMemoryStore()

	s := &Server{
		config:       cfg,
		db:           db,
		cacheStore:   cacheStore,
		blobStore:    blobs,
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
		userRepo:     userRepo,
		profileService: service.NewProfileService(
			repository.NewProfileRepository(db), blobs, cfg.BackendURL, cfg.MaxAvatarBytes),
		postService: service.NewPostService(
			repository.NewPostRepository(db), userRepo, cacheStore, blobs,
			cfg.MaxMediaBytes, cfg.AllowedExtensionSet()),
		messageService: service.NewMessageService(
			repository.NewMessageRepository(db), userRepo),
	}

	app := fiber.New()
	s.SetupRoutes(app)
	return app, s
}

// doJSON performs a JSON request against the test app and decodes the body.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp.StatusCode, decoded
}

// signupUser registers an account through the API and returns its token.
func signupUser(t *testing.T, app *fiber.App, username, email string) string {
	t.Helper()

	status, body := doJSON(t, app, http.MethodPost, "/api/signup", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "Password123",
	})
	require.Equal(t, http.StatusCreated, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// decodeBody decodes a JSON response body into dest.
func decodeBody(r io.Reader, dest any) error {
	return json.NewDecoder(r).Decode(dest)
}

// testPNG encodes a solid-color PNG of the given dimensions.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// multipartRequest builds a multipart form request with the given fields and
// an optional file part.
func multipartRequest(t *testing.T, method, path, token, fileField, filename string, fileData []byte, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(fileData)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
