package auth

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		Name("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			// limitReq,
			controller.LoginPost,
		).
		Name("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).Name("sign-out.get")

	app.Post(controller.Routes.Signup, controller.SignupCreate).
		Name("sign-up.post")
}

type AuthControllerRoutes struct {
	Login   string
	Logout  string
	Signup  string
	Landing string
}

type AuthControllerViews struct {
	Login string
}

type AuthController struct {
	Debug    bool
	Logger   Logger
	Client   AuthAPI
	Sessions *Manager
	Guard    *RouteGuard
	Routes   *AuthControllerRoutes
	Views    *AuthControllerViews
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:   "/login",
			Logout:  "/logout",
			Signup:  "/signup",
			Landing: "/dashboard",
		},
		Views: &AuthControllerViews{
			Login: "login",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Client == nil {
		panic("Missing AuthAPI client in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing session Manager in auth controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

func WithControllerClient(client AuthAPI) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Client = client
		return c
	}
}

func WithControllerSessions(sessions *Manager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Sessions = sessions
		return c
	}
}

func WithControllerGuard(guard *RouteGuard) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Guard = guard
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Routes = routes
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

func (a *AuthController) LoginShow(ctx *fiber.Ctx) error {
	return ctx.Render(a.Views.Login, fiber.Map{
		"errors": nil,
		"record": nil,
		"notice": ConsumeNotice(ctx),
	})
}

// LoginRequest payload
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Username
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(6, 0),
		),
	)
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginRequest)
	errs := map[string]string{}

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload: %s", err)
		errs["form"] = "Failed to parse form"
		return ctx.Status(fiber.StatusBadRequest).Render(a.Views.Login, fiber.Map{
			"errors": errs,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, fiber.Map{
			"record":     payload,
			"validation": formatValidationErrors(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH LOGIN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("=========================")
	}

	grant, err := a.Client.Login(ctx.UserContext(), payload.Username, payload.Password)
	if err != nil {
		a.Logger.Warn("login rejected for %q: %s", payload.Username, err)
		errs["authentication"] = "Invalid username or password"
		return ctx.Render(a.Views.Login, fiber.Map{
			"errors": errs,
			"record": payload,
		})
	}

	if err := a.Sessions.Login(ctx.UserContext(), grant, payload.Username); err != nil {
		a.Logger.Error("session establish: %s", err)
		errs["authentication"] = "Invalid username or password"
		return ctx.Render(a.Views.Login, fiber.Map{
			"errors": errs,
			"record": payload,
		})
	}

	SetNotice(ctx, "Signed in")

	redirect := a.Routes.Landing
	if a.Guard != nil {
		redirect = a.Guard.ConsumeReturnTo(ctx, a.Routes.Landing)
	}

	return ctx.Redirect(redirect, fiber.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx *fiber.Ctx) error {
	if err := a.Sessions.Logout(ctx.UserContext()); err != nil {
		a.Logger.Warn("logout: %s", err)
	}
	return ctx.Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// SignupRequest payload
type SignupRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
	Role     string `form:"role" json:"role"`
}

// Validate will run validation rules
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&r.Role, validation.Required),
	)
}

func (a *AuthController) SignupCreate(ctx *fiber.Ctx) error {
	payload := new(SignupRequest)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("signup parse payload: %s", err)
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Failed to parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("signup validate payload: %s", err)
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"errors":  formatValidationErrors(err),
		})
	}

	if a.Debug {
		fmt.Println("======= AUTH SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(SignupRequest{
			Username: payload.Username,
			Email:    payload.Email,
			Role:     payload.Role,
		}))
		fmt.Println("==========================")
	}

	req := SignupPayload{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Role:     payload.Role,
	}

	if err := a.Client.Signup(ctx.UserContext(), req); err != nil {
		a.Logger.Warn("signup rejected for %q: %s", payload.Username, err)
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Signup failed. Please try again.",
		})
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
	})
}

// formatValidationErrors flattens ozzo validation errors into a
// field to message map for rendering.
func formatValidationErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validation.Errors)
	if !ok {
		out["form"] = err.Error()
		return out
	}
	for field, ferr := range verrs {
		out[field] = ferr.Error()
	}
	return out
}
