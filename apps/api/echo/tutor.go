package echoapi

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

var (
	errTutNotFoundInCtx  = errors.New("tutor object not found in echo.Context")
	errNoPermsToSetRoles = "not enough rights to set these roles"
)

type tutorApi struct {
	svc tutor.ServiceInterface
}

func registerTutorAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc tutor.ServiceInterface) {
	api := tutorApi{svc: svc}

	tg := g.Group("/tutors")

	// un-authed endpoints
	// TODO: rate limit `/password-reset` & `/password-reset-confirm`
	tg.POST("/login", api.login)
	tg.POST("/password-reset", api.resetPassword)
	tg.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := tg.Group("", jwt)
	ag.POST("/token-refresh", api.refreshToken)
	ag.POST("/register", api.create, adminMiddleware())
	ag.GET("", api.query, adminMiddleware())
	ag.DELETE("", api.destroyMultiple, adminMiddleware())
	ag.GET("/roles", api.queryRoles, adminMiddleware())

	// detail endpoints
	dg := ag.Group("/:id", ctxTutorOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
}

// Handlers

func (api *tutorApi) create(ctx echo.Context) error {
	var data tutor.NewTutor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTutor")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	// ctxTutor cannot set a role > their own max role
	ctxTut, err := getContextTutor(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context tutor")
	}
	if tutor.MaxRolePriority(data.Roles) > tutor.MaxRolePriority(ctxTut.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}

	tut, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating tutor")
	}

	return ctx.JSON(http.StatusCreated, tut)
}

func (api *tutorApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(data.Username, data.Password, api.svc)
	if err != nil {
		if errors.Cause(err) == tutor.ErrNotFound {
			return core.NewValidationError(errors.New("invalid credentials"))
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *tutorApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(data.Email); !(err == nil || errors.Cause(err) == tutor.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *tutorApi) confirmPasswordReset(ctx echo.Context) error {
	var data tutor.ResetTutorPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetTutorPassword")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *tutorApi) query(ctx echo.Context) error {
	filter := new(tutor.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []tutor.Tutor{})
	}
	filter.Clean()

	var tuts []tutor.Tutor
	var err error
	if filter.IsEmpty() {
		tuts, err = api.svc.QueryAll()
	} else {
		tuts, err = api.svc.Filter(*filter)
	}
	if err != nil {
		return errors.Wrap(err, "querying tutors")
	}
	if tuts == nil {
		tuts = []tutor.Tutor{}
	}
	return ctx.JSON(http.StatusOK, tuts)
}

func (api *tutorApi) retrieve(ctx echo.Context) error {
	tut, ok := ctx.Get("object").(tutor.Tutor)
	if !ok {
		return errors.Wrap(errTutNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, tut)
}

func (api *tutorApi) update(ctx echo.Context) error {
	tut, ok := ctx.Get("object").(tutor.Tutor)
	if !ok {
		return errors.Wrap(errTutNotFoundInCtx, "retrieving object from context")
	}

	var data tutor.UpdateTutor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTutor")
	}

	ctxTut, err := getContextTutor(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context tutor")
	}
	if !ctxTut.IsAdmin() {
		// `IsActive` and `Roles` can only be changed by admin
		// `Username` and `Email` can only be changed by admin for now
		if data.IsActive != nil || data.Roles != nil || data.Username != "" || data.Email != "" {
			return errHttpForbidden
		}
	}

	if err := data.Validate(tut, api.svc); err != nil {
		return err
	}

	// ctxTutor cannot set a role > their own max role
	if tutor.MaxRolePriority(data.Roles) > tutor.MaxRolePriority(ctxTut.Roles) {
		return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errNoPermsToSetRoles})
	}

	tut, err = api.svc.Update(tut.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating tutor")
	}

	return ctx.JSON(http.StatusOK, tut)
}

func (api *tutorApi) destroy(ctx echo.Context) error {
	tut, ok := ctx.Get("object").(tutor.Tutor)
	if !ok {
		return errors.Wrap(errTutNotFoundInCtx, "retrieving object from context")
	}

	// ctxTutor cannot delete themselves
	ctxTut, err := getContextTutor(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context tutor")
	}
	if tut.ID == ctxTut.ID {
		return errHttpForbidden
	}

	if err := api.svc.Delete(tut.ID); err != nil {
		return errors.Wrap(err, "deleting tutor")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *tutorApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxTutor cannot delete themselves
	ctxTut, err := getContextTutor(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context tutor")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, ctxTut.ID); i < len(query.IDs) {
		if match := query.IDs[i]; ctxTut.ID == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(query.IDs...); err != nil {
		return errors.Wrap(err, "deleting tutors")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *tutorApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, tutor.Roles)
}

func (api *tutorApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func ctxTutorOrAdminMiddleware(svc tutor.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxTut, err := getContextTutor(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context tutor")
			}

			if ctx.Param("id") == ctxTut.ID || ctxTut.IsAdmin() {
				if tut, err := svc.GetByID(ctx.Param("id")); err == nil {
					ctx.Set("object", tut)
					return next(ctx)
				} else if errors.Cause(err) != tutor.ErrNotFound {
					return errors.Wrap(err, "finding tutor by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}
