package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/microvest/backoffice/internal/models"
)

func setAuthTestConfig() {
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)
}

func asAdmin(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), "userID", 1)
	ctx = context.WithValue(ctx, "userRole", models.RoleAdmin)
	return r.WithContext(ctx)
}

func TestAuthService_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setAuthTestConfig()
	service := NewAuthService(db, nil)

	t.Run("successful registration", func(t *testing.T) {
		req := RegisterRequest{
			Email:       "officer@microvest.example",
			Password:    "password123",
			FirstName:   "Jane",
			LastName:    "Doe",
			PhoneNumber: "+2348012345678",
			Role:        models.RoleLoanOfficer,
		}

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(req.Email, sqlmock.AnyArg(), req.FirstName, req.LastName, req.PhoneNumber, req.Role).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

		body, _ := json.Marshal(req)
		r := asAdmin(httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, req.Email, response.User.Email)
		assert.Equal(t, models.RoleLoanOfficer, response.User.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		req := RegisterRequest{
			Email: "x@microvest.example", Password: "password123",
			FirstName: "Sam", LastName: "Obi", PhoneNumber: "+2348000000000",
			Role: models.RoleAccountant,
		}
		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		ctx := context.WithValue(r.Context(), "userID", 9)
		ctx = context.WithValue(ctx, "userRole", models.RoleLoanOfficer)
		w := httptest.NewRecorder()

		service.Register(w, r.WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		body := []byte(`{"email":"x@microvest.example","password":"password123","firstName":"Sam","lastName":"Obi","phoneNumber":"+2348000000000","role":"superuser"}`)
		r := asAdmin(httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body)))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		r := asAdmin(httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer([]byte("invalid"))))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	setAuthTestConfig()
	service := NewAuthService(db, nil)

	t.Run("successful login carries role", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone_number, role, password").
			WithArgs("acct@microvest.example").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "phone_number", "role", "password"}).
				AddRow(3, "acct@microvest.example", "Ada", "Eze", "+2348011111111", models.RoleAccountant, hashedPassword))
		mock.ExpectExec("UPDATE users SET last_login").
			WithArgs(3).
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := LoginRequest{Email: "acct@microvest.example", Password: "password123"}
		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		json.Unmarshal(w.Body.Bytes(), &response)
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, models.RoleAccountant, response.User.Role)

		parsed, err := jwt.Parse(response.Token, func(token *jwt.Token) (interface{}, error) {
			return []byte("test-secret"), nil
		})
		assert.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, models.RoleAccountant, claims["role"])
	})

	t.Run("user not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone_number, role, password").
			WithArgs("nonexistent@microvest.example").
			WillReturnError(sql.ErrNoRows)

		req := LoginRequest{Email: "nonexistent@microvest.example", Password: "password123"}
		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		hashedPassword, _ := hashPassword("password123")
		mock.ExpectQuery("SELECT id, email, first_name, last_name, phone_number, role, password").
			WithArgs("acct@microvest.example").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "phone_number", "role", "password"}).
				AddRow(3, "acct@microvest.example", "Ada", "Eze", "+2348011111111", models.RoleAccountant, hashedPassword))

		req := LoginRequest{Email: "acct@microvest.example", Password: "wrongpassword"}
		body, _ := json.Marshal(req)
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPasswordHashing(t *testing.T) {
	setAuthTestConfig()

	password := "testpassword"

	hashed, err := hashPassword(password)
	assert.NoError(t, err)
	assert.NotEmpty(t, hashed)

	assert.True(t, verifyPassword(password, hashed))
	assert.False(t, verifyPassword("wrongpassword", hashed))
}

func TestGenerateJWT(t *testing.T) {
	setAuthTestConfig()

	token, err := generateJWT(123, models.RoleAdmin)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}
