package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/club"
)

type clubApi struct {
	svc club.ServiceInterface
}

func registerClubAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc club.ServiceInterface) {
	api := clubApi{svc: svc}

	cg := g.Group("/clubs", jwt)
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.GET("/:id/students", api.queryStudents)
	cg.DELETE("/:id/students/:studentId", api.removeStudent)

	ag := g.Group("/applications", jwt)
	ag.GET("", api.queryApplications)
	ag.POST("/:id/process", api.processApplication)
}

// getOwnedClub fetches the club and enforces ownership: the club's assigned
// tutor or an admin. Anyone else sees a 404, not a 403; club IDs are not
// leaked across tutors.
func getOwnedClub(ctx echo.Context, svc club.ServiceInterface, id string) (club.Club, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return club.Club{}, errors.Wrap(err, "getting context claims")
	}
	c, err := svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return club.Club{}, err
	}
	if c.TutorID != claims.Subject && !claims.IsAdmin {
		return club.Club{}, errHttpNotFound
	}
	return c, nil
}

// Handlers

func (api *clubApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	clubs, err := api.svc.QueryByTutor(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying clubs")
	}
	if clubs == nil {
		clubs = []club.Club{}
	}
	return ctx.JSON(http.StatusOK, clubs)
}

func (api *clubApi) retrieve(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.svc, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *clubApi) update(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.svc, ctx.Param("id"))
	if err != nil {
		return err
	}

	var data club.UpdateClub
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClub")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	c, err = api.svc.Update(ctx.Request().Context(), c.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating club")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *clubApi) queryStudents(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.svc, ctx.Param("id"))
	if err != nil {
		return err
	}

	roster, err := api.svc.GetStudents(ctx.Request().Context(), c.ID)
	if err != nil {
		return errors.Wrap(err, "fetching roster")
	}
	roster = filterStudents(roster, ctx.QueryParam("search"))
	if roster == nil {
		roster = []club.Student{}
	}
	return ctx.JSON(http.StatusOK, roster)
}

// filterStudents matches the query case-insensitively against the full name,
// or as a substring of the external id number. Roster order preserved.
func filterStudents(roster []club.Student, query string) []club.Student {
	query = strings.TrimSpace(query)
	if query == "" {
		return roster
	}
	lq := strings.ToLower(query)

	matched := make([]club.Student, 0, len(roster))
	for _, s := range roster {
		if strings.Contains(strings.ToLower(s.FullName), lq) ||
			strings.Contains(s.StudentIDNumber, query) {
			matched = append(matched, s)
		}
	}
	return matched
}

func (api *clubApi) removeStudent(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.svc, ctx.Param("id"))
	if err != nil {
		return err
	}

	if err := api.svc.RemoveStudent(ctx.Request().Context(), c.ID, ctx.Param("studentId")); err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *clubApi) queryApplications(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	status := core.CleanString(ctx.QueryParam("status"), true /* lower */)
	apps, err := api.svc.QueryApplications(ctx.Request().Context(), claims.Subject, status)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []club.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *clubApi) processApplication(ctx echo.Context) error {
	var data club.ProcessApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProcessApplication")
	}
	if err := data.Validate(core.Validate); err != nil {
		return err
	}

	app, err := api.svc.GetApplication(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "fetching application")
	}
	if _, err = getOwnedClub(ctx, api.svc, app.ClubID); err != nil {
		return err
	}

	app, err = api.svc.ProcessApplication(ctx.Request().Context(), app.ID, data)
	if err != nil {
		return errors.Wrap(err, "processing application")
	}
	return ctx.JSON(http.StatusOK, app)
}
