package passwordless

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

func RegisterLoginRoutes[T any](app router.Router[T], opts ...LoginControllerOption) {

	controller := NewLoginController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			controller.RequestCodePost,
		).
		SetName("sign-in.post")

	app.Get(controller.Routes.Verify, controller.VerifyShow).SetName("verify.get")
	app.Post(controller.Routes.Verify, controller.VerifyCodePost).SetName("verify.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")
}

type LoginControllerRoutes struct {
	Login  string
	Verify string
	Logout string
}

type LoginControllerViews struct {
	Login  string
	Verify string
}

type LoginController struct {
	Debug        bool
	Logger       Logger
	Manager      *SessionManager
	Guard        *RouteGuard
	Routes       *LoginControllerRoutes
	Views        *LoginControllerViews
	ErrorHandler router.ErrorHandler
}

type LoginControllerOption func(*LoginController) *LoginController

func NewLoginController(opts ...LoginControllerOption) *LoginController {
	c := &LoginController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &LoginControllerRoutes{
			Login:  "/login",
			Verify: "/login/verify",
			Logout: "/logout",
		},
		Views: &LoginControllerViews{
			Login:  "login",
			Verify: "login_verify",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Manager == nil {
		panic("Missing SessionManager in login controller...")
	}

	return c
}

func (a *LoginController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// RequestCodePayload is the email form payload
type RequestCodePayload struct {
	Email string `form:"email" json:"email"`
}

// GetEmail returns the email
func (r RequestCodePayload) GetEmail() string {
	return r.Email
}

// Validate will run validation rules
func (r RequestCodePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *LoginController) RequestCodePost(ctx router.Context) error {
	payload := new(RequestCodePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("request code parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("request code validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= CODE REQUEST ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===========================")
	}

	if err := a.Manager.RequestCode(ctx.Context(), payload.Email); err != nil {
		a.Logger.Error("request code error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Could not send a login code",
		}).Render(a.Views.Login, router.ViewContext{
			"record": payload,
			"errors": []string{err.Error()},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "We sent a login code to your email",
	}).Redirect(a.Routes.Verify, fiber.StatusSeeOther)
}

func (a *LoginController) VerifyShow(ctx router.Context) error {
	attempt := a.Manager.Attempt()

	if attempt.Phase != PhaseCodeRequested {
		return ctx.Redirect(a.Routes.Login, fiber.StatusSeeOther)
	}

	view := router.ViewContext{
		"errors": nil,
		"email":  attempt.Email,
	}

	if attempt.DevCode != "" {
		view["dev_code"] = attempt.DevCode
	}

	return ctx.Render(a.Views.Verify, view)
}

// VerifyCodePayload is the code form payload
type VerifyCodePayload struct {
	Code string `form:"code" json:"code"`
}

// Validate will run validation rules
func (r VerifyCodePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Code,
			validation.Required,
			validation.Length(6, 6),
			is.Digit,
		),
	)
}

// NormalizeCode strips everything but digits so pasted codes with spaces
// or dashes validate.
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, c := range code {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func (a *LoginController) VerifyCodePost(ctx router.Context) error {
	payload := new(VerifyCodePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("verify code parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Verify, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	payload.Code = NormalizeCode(payload.Code)

	if err := payload.Validate(); err != nil {
		a.Logger.Error("verify code validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Verify, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
			"email":      a.Manager.Attempt().Email,
		})
	}

	attempt := a.Manager.Attempt()
	if attempt.Phase != PhaseCodeRequested {
		return ctx.Redirect(a.Routes.Login, fiber.StatusSeeOther)
	}

	if err := a.Manager.VerifyCode(ctx.Context(), attempt.Email, payload.Code); err != nil {
		a.Logger.Error("verify code error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "That code did not work",
		}).Render(a.Views.Verify, router.ViewContext{
			"errors": []string{err.Error()},
			"email":  attempt.Email,
		})
	}

	redirect := "/"
	if a.Guard != nil {
		redirect = a.Guard.GetRedirect(ctx, "/")
	}

	if a.Debug {
		fmt.Println("redirecting to: " + redirect)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "You are signed in",
	}).Redirect(redirect, fiber.StatusSeeOther)
}

func (a *LoginController) LogOut(ctx router.Context) error {
	if err := a.Manager.Logout(ctx.Context()); err != nil {
		a.Logger.Error("logout error: ", "error", err)
	}
	return ctx.Redirect("/", router.StatusTemporaryRedirect)
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map for view rendering.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if errs, ok := err.(validation.Errors); ok {
		for field, ferr := range errs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
