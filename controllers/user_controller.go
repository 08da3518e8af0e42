package controllers

import (
	"materials-erp/models"
	"materials-erp/repositories"
	"materials-erp/workflow"

	"github.com/go-playground/validator"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UserController struct {
	DB *gorm.DB
}

func NewUserController(DB *gorm.DB) *UserController {
	return &UserController{DB: DB}
}

var validate = validator.New()

func (c *UserController) CreateUser(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	if !actor.Role.IsAdmin() {
		return forbidden(ctx)
	}

	var userInput struct {
		Username string `json:"username" validate:"required,min=3"`
		Name     string `json:"name" validate:"required,min=3"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"required,min=6"`
		Role     string `json:"role" validate:"required"`
	}
	if err := ctx.BodyParser(&userInput); err != nil {
		return badRequest(ctx, err.Error())
	}
	if err := validate.Struct(userInput); err != nil {
		return badRequest(ctx, err.Error())
	}

	hashedPassword, err := HashPassword(userInput.Password)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to hash password"})
	}

	user := models.User{
		Username:  userInput.Username,
		Name:      userInput.Name,
		Email:     userInput.Email,
		Password:  hashedPassword,
		Role:      workflow.ParseRole(userInput.Role).Raw,
		IsActive:  true,
		CreatedBy: int(actor.UserID),
	}
	if err := repositories.NewUserRepository(c.DB).Create(&user); err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusCreated, "User created successfully", user)
}

func (c *UserController) GetUserByID(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(ctx, "Invalid user ID")
	}
	user, err := repositories.NewUserRepository(c.DB).GetByID(uint(id))
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "User found", user)
}

func (c *UserController) GetAllUsers(ctx *fiber.Ctx) error {
	users, err := repositories.NewUserRepository(c.DB).GetAll()
	if err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "Users found", users)
}

func (c *UserController) UpdateUser(ctx *fiber.Ctx) error {
	actor, err := actorOf(ctx)
	if err != nil {
		return err
	}
	if !actor.Role.IsAdmin() {
		return forbidden(ctx)
	}
	id, err := ctx.ParamsInt("id")
	if err != nil || id <= 0 {
		return badRequest(ctx, "Invalid user ID")
	}

	var userInput struct {
		Name     string `json:"name"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password" validate:"omitempty,min=6"`
		Role     string `json:"role"`
		IsActive *bool  `json:"is_active"`
	}
	if err := ctx.BodyParser(&userInput); err != nil {
		return badRequest(ctx, err.Error())
	}
	if err := validate.Struct(userInput); err != nil {
		return badRequest(ctx, err.Error())
	}

	repo := repositories.NewUserRepository(c.DB)
	user, err := repo.GetByID(uint(id))
	if err != nil {
		return fail(ctx, err)
	}
	if userInput.Name != "" {
		user.Name = userInput.Name
	}
	if userInput.Email != "" {
		user.Email = userInput.Email
	}
	if userInput.Role != "" {
		user.Role = workflow.ParseRole(userInput.Role).Raw
	}
	if userInput.IsActive != nil {
		user.IsActive = *userInput.IsActive
	}
	if userInput.Password != "" {
		if user.Password, err = HashPassword(userInput.Password); err != nil {
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Failed to hash password"})
		}
	}
	user.UpdatedBy = int(actor.UserID)
	if err := repo.Update(user); err != nil {
		return fail(ctx, err)
	}
	return respond(ctx, fiber.StatusOK, "User updated successfully", user)
}

func forbidden(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"success": false,
		"message": "Forbidden: You do not have permission",
	})
}
