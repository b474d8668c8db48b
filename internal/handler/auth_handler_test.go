package handler

import (
	"net/http"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/docuveda/lab-service/internal/model"
	"github.com/docuveda/lab-service/pkg/database"
	"github.com/docuveda/lab-service/pkg/jwtutil"
	metrics "github.com/docuveda/lab-service/prometheus"
)

func setupAuthTest(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite memory: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Lab{}, &model.Document{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	database.DB = db

	InitJWT(jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:    "test-signing-key",
		AccessExpiry:  45 * time.Minute,
		RefreshExpiry: 30 * 24 * time.Hour,
	}))
}

func TestSignupAndLogin(t *testing.T) {
	setupAuthTest(t)

	c, rec := newContentRequest(http.MethodPost, "/signup",
		`{"email":"admin@example.com","name":"Admin","role":"super_admin","password":"s3cret"}`)
	assert.NoError(t, Signup(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	user, err := model.FindUserByEmail(database.GetDB(), "admin@example.com")
	assert.NoError(t, err)
	assert.Equal(t, "admin@example.com", user.Username)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "s3cret", user.Password)

	c, rec = newContentRequest(http.MethodPost, "/login",
		`{"email":"admin@example.com","password":"s3cret"}`)
	assert.NoError(t, Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContentRequest(http.MethodPost, "/login",
		`{"email":"admin@example.com","password":"wrong"}`)
	assert.NoError(t, Login(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	setupAuthTest(t)

	body := `{"email":"admin@example.com","name":"Admin","role":"super_admin","password":"s3cret"}`
	c, rec := newContentRequest(http.MethodPost, "/signup", body)
	assert.NoError(t, Signup(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newContentRequest(http.MethodPost, "/signup", body)
	assert.NoError(t, Signup(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupRequiresAllFields(t *testing.T) {
	setupAuthTest(t)

	c, rec := newContentRequest(http.MethodPost, "/signup",
		`{"email":"admin@example.com","password":"s3cret"}`)
	assert.NoError(t, Signup(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWTLoginIssuesTokens(t *testing.T) {
	setupAuthTest(t)

	c, _ := newContentRequest(http.MethodPost, "/signup",
		`{"email":"admin@example.com","name":"Admin","role":"super_admin","password":"s3cret"}`)
	assert.NoError(t, Signup(c))

	c, rec := newContentRequest(http.MethodPost, "/jwt-login",
		`{"email":"admin@example.com","password":"s3cret"}`)
	assert.NoError(t, JWTLogin(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["accessToken"])
	assert.NotEmpty(t, data["refreshToken"])

	user, err := model.FindUserByEmail(database.GetDB(), "admin@example.com")
	assert.NoError(t, err)
	assert.NotNil(t, user.LastLogin)
}

func dbOperationSum(t *testing.T, operation string) float64 {
	t.Helper()
	observer, err := metrics.DBOperationDuration.GetMetricWith(promclient.Labels{"operation": operation})
	require.NoError(t, err)
	m := &dto.Metric{}
	require.NoError(t, observer.(promclient.Metric).Write(m))
	return m.GetHistogram().GetSampleSum()
}

func TestSignupTimesDatabaseOperationsSeparately(t *testing.T) {
	setupAuthTest(t)

	// Slow down the insert; the lookup's recorded duration must not absorb it.
	require.NoError(t, database.GetDB().Callback().Create().After("gorm:create").
		Register("slow_create", func(*gorm.DB) { time.Sleep(150 * time.Millisecond) }))

	queryBefore := dbOperationSum(t, "query")
	insertBefore := dbOperationSum(t, "insert")

	c, rec := newContentRequest(http.MethodPost, "/signup",
		`{"email":"admin@example.com","name":"Admin","role":"super_admin","password":"s3cret"}`)
	assert.NoError(t, Signup(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Less(t, dbOperationSum(t, "query")-queryBefore, 0.1)
	assert.GreaterOrEqual(t, dbOperationSum(t, "insert")-insertBefore, 0.15)
}

func TestJWTLoginRejectsInactiveUser(t *testing.T) {
	setupAuthTest(t)

	c, _ := newContentRequest(http.MethodPost, "/signup",
		`{"email":"admin@example.com","name":"Admin","role":"super_admin","password":"s3cret"}`)
	assert.NoError(t, Signup(c))

	assert.NoError(t, database.GetDB().Model(&model.User{}).
		Where("email = ?", "admin@example.com").Update("is_active", false).Error)

	c, rec := newContentRequest(http.MethodPost, "/jwt-login",
		`{"email":"admin@example.com","password":"s3cret"}`)
	assert.NoError(t, JWTLogin(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
