package middleware

import (
	"errors"
	"log"
	"materials-erp/config"
	"materials-erp/services"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var errInvalidClaims = errors.New("invalid token claims")

// Claims are the fields the API reads from an access token.
type Claims struct {
	UserID uint
	Name   string
	Role   string
}

// ParseToken verifies an HMAC-signed access token and extracts its claims.
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Unauthorized: Invalid signing method")
		}
		return []byte(config.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errInvalidClaims
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return nil, errInvalidClaims
	}
	role, ok := claims["role"].(string)
	if !ok {
		return nil, errInvalidClaims
	}
	name, _ := claims["name"].(string)
	return &Claims{UserID: uint(userID), Name: name, Role: role}, nil
}

func AuthMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if authHeader == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Missing Authorization header",
		})
	}

	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid Authorization header format",
		})
	}

	claims, err := ParseToken(tokenParts[1])
	if err != nil {
		log.Println("Error parsing token:", err)
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized: Invalid token",
		})
	}

	ctx.Locals("userID", float64(claims.UserID))
	ctx.Locals("userName", claims.Name)
	ctx.Locals("userRole", claims.Role)
	return ctx.Next()
}

// ActorFrom rebuilds the acting user from the locals AuthMiddleware set.
func ActorFrom(ctx *fiber.Ctx) (services.Actor, bool) {
	userID, ok := ctx.Locals("userID").(float64)
	if !ok {
		return services.Actor{}, false
	}
	name, _ := ctx.Locals("userName").(string)
	role, _ := ctx.Locals("userRole").(string)
	return services.NewActor(uint(userID), name, role), true
}

// WsAuthenticator adapts ParseToken to the websocket listener.
func WsAuthenticator(token string) (uint, error) {
	claims, err := ParseToken(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
