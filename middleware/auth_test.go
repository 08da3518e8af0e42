package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"materials-erp/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": 7,
		"name":    "Inventory Head",
		"role":    "inventory_head",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func TestParseToken(t *testing.T) {
	config.JWTSecret = testSecret
	key := []byte(testSecret)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	noExpiry := validClaims()
	delete(noExpiry, "exp")
	noRole := validClaims()
	delete(noRole, "role")
	zeroUser := validClaims()
	zeroUser["user_id"] = 0

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", signed(t, jwt.SigningMethodHS256, key, validClaims()), false},
		{"wrong_secret", signed(t, jwt.SigningMethodHS256, []byte("other"), validClaims()), true},
		{"expired", signed(t, jwt.SigningMethodHS256, key, expired), true},
		{"no_expiry", signed(t, jwt.SigningMethodHS256, key, noExpiry), true},
		{"no_role", signed(t, jwt.SigningMethodHS256, key, noRole), true},
		{"zero_user", signed(t, jwt.SigningMethodHS256, key, zeroUser), true},
		{"unsigned", signed(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims()), true},
		{"garbage", "not-a-token", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(7), claims.UserID)
			assert.Equal(t, "Inventory Head", claims.Name)
			assert.Equal(t, "inventory_head", claims.Role)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	config.JWTSecret = testSecret
	token := signed(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

	app := fiber.New()
	app.Get("/whoami", AuthMiddleware, func(c *fiber.Ctx) error {
		actor, ok := ActorFrom(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.JSON(fiber.Map{"id": actor.UserID, "name": actor.Name, "department": actor.Role.Department})
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong_scheme", "Basic " + token, fiber.StatusUnauthorized},
		{"bad_token", "Bearer nope", fiber.StatusUnauthorized},
		{"valid", "Bearer " + token, fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.want == fiber.StatusOK {
				assert.Equal(t, float64(7), body["id"])
				assert.Equal(t, "inventory", body["department"])
			} else {
				assert.Equal(t, false, body["success"])
			}
		})
	}
}

func TestWsAuthenticator(t *testing.T) {
	config.JWTSecret = testSecret
	id, err := WsAuthenticator(signed(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()))
	require.NoError(t, err)
	assert.Equal(t, uint(7), id)

	_, err = WsAuthenticator("")
	assert.Error(t, err)
}
