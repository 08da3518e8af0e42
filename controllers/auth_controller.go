package controllers

import (
	"materials-erp/apperr"
	"materials-erp/config"
	"materials-erp/models"
	"materials-erp/repositories"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 24 * time.Hour

type AuthController struct {
	DB *gorm.DB
}

func NewAuthController(DB *gorm.DB) *AuthController {
	return &AuthController{DB: DB}
}

func (c *AuthController) Login(ctx *fiber.Ctx) error {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := ctx.BodyParser(&input); err != nil {
		return badRequest(ctx, "Invalid request")
	}
	if input.Username == "" || input.Password == "" {
		return badRequest(ctx, "Missing required fields")
	}

	user, err := repositories.NewUserRepository(c.DB).GetByUsername(input.Username)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return invalidCredentials(ctx)
		}
		return fail(ctx, err)
	}
	if !user.IsActive {
		return invalidCredentials(ctx)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		return invalidCredentials(ctx)
	}

	token, err := GenerateToken(user)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to generate token",
		})
	}
	return respond(ctx, fiber.StatusOK, "Login successful", fiber.Map{
		"access_token": token,
		"user":         user,
	})
}

func (c *AuthController) Me(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	user, err := repositories.NewUserRepository(c.DB).GetByID(actor.UserID)
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "User found", user)
}

// GenerateToken signs an access token carrying the user's id, name and role.
func GenerateToken(user *models.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"name":    user.Name,
		"role":    user.Role,
		"exp":     time.Now().Add(tokenTTL).Unix(),
		"jti":     uuid.NewString(),
	})
	return token.SignedString([]byte(config.JWTSecret))
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func invalidCredentials(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "Invalid username or password",
	})
}
