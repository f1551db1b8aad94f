package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/attendance"
	"github.com/Shukurulla/dogerek-tutor/core/club"
)

type attendanceApi struct {
	svc     attendance.ServiceInterface
	clubSvc club.ServiceInterface
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.ServiceInterface, clubSvc club.ServiceInterface) {
	api := attendanceApi{svc: svc, clubSvc: clubSvc}

	cg := g.Group("/clubs/:id", jwt)
	cg.GET("/attendance", api.editContext)
	cg.GET("/attendance/history", api.history)
	cg.GET("/attendance/absent", api.absentStudents)
	cg.GET("/attendance/export", api.export)
	cg.GET("/statistics", api.statistics)
	cg.GET("/warnings", api.warnings)
	cg.POST("/warnings/notify", api.notifyWarnings)

	g.GET("/dashboard", api.dashboard, jwt)

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.submit)
	ag.POST("/:recordId/telegram-post", api.attachTelegramPost)
	ag.POST("/:recordId/reopen", api.reopen, adminMiddleware())
}

// editContextResponse wraps the editing context with the draft rows the
// surface renders, optionally narrowed by a search query.
type editContextResponse struct {
	attendance.EditContext
	Rows []attendance.Row `json:"rows"`
}

// parseRangeParam reads an optional date query param; absent means unbounded.
func parseRangeParam(ctx echo.Context, name string) (attendance.SessionDate, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return attendance.SessionDate{}, nil
	}
	date, err := attendance.ParseSessionDate(raw)
	if err != nil {
		return attendance.SessionDate{}, core.NewValidationError(err, core.FieldError{Field: name, Error: err.Error()})
	}
	return date, nil
}

func parseRange(ctx echo.Context) (from, to attendance.SessionDate, err error) {
	if from, err = parseRangeParam(ctx, "from"); err != nil {
		return
	}
	to, err = parseRangeParam(ctx, "to")
	return
}

// Handlers

func (api *attendanceApi) editContext(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.clubSvc, ctx.Param("id"))
	if err != nil {
		return err
	}

	ec, err := api.svc.EditContext(ctx.Request().Context(), c.ID, ctx.QueryParam("date"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, editContextResponse{
		EditContext: ec,
		Rows:        attendance.FilterBySearch(ec.Draft, ctx.QueryParam("search")),
	})
}

func (api *attendanceApi) submit(ctx echo.Context) error {
	var data attendance.NewRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if _, err := getOwnedClub(ctx, api.clubSvc, data.ClubID); err != nil {
		return err
	}

	rec, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *attendanceApi) history(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.clubSvc, ctx.Param("id"))
	if err != nil {
		return err
	}
	from, to, err := parseRange(ctx)
	if err != nil {
		return err
	}

	page, err := api.svc.History(ctx.Request().Context(), c.ID, from, to)
	if err != nil {
		return errors.Wrap(err, "querying history")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *attendanceApi) statistics(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.clubSvc, ctx.Param("id"))
	if err != nil {
		return err
	}
	from, to, err := parseRange(ctx)
	if err != nil {
		return err
	}

	stats, err := api.svc.ClubStatistics(ctx.Request().Context(), c.ID, from, to)
	if err != nil {
		return errors.Wrap(err, "computing statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) warnings(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.clubSvc, ctx.Param("id"))
	if err != nil {
		return err
	}
	from, to, err := parseRange(ctx)
	if err != nil {
		return err
	}

	rows, err := api.warningRows(ctx, c, from, to)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rows)
}

// notifyWarnings recomputes the warning list and emails it to the requesting
// tutor, attaching the xlsx report for the same range. Sending is
// asynchronous; the response only reports the list size.
func (api *attendanceApi) notifyWarnings(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.clubSvc, ctx.Param("id"))
	if err != nil {
		return err
	}
	from, to, err := parseRange(ctx)
	if err != nil {
		return err
	}

	rows, err := api.warningRows(ctx, c, from, to)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var report *bytes.Buffer
	if len(rows) > 0 {
		if report, err = api.svc.ExportReport(ctx.Request().Context(), c.Name, c.ID, from, to); err != nil {
			return errors.Wrap(err, "exporting report")
		}
	}
	api.svc.NotifyWarnings(ctx.Request().Context(), c.Name, mail.Address{Name: claims.Username, Address: claims.Email}, rows, report)

	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: fmt.Sprintf("%d warning(s) reported", len(rows)),
	})
}

func (api *attendanceApi) warningRows(ctx echo.Context, c club.Club, from, to attendance.SessionDate) ([]attendance.WarningRow, error) {
	var threshold float64
	var err error
	if raw := ctx.QueryParam("threshold"); raw != "" {
		if threshold, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, core.NewValidationError(err, core.FieldError{Field: "threshold", Error: "must be a number"})
		}
	}

	rows, err := api.svc.Warnings(ctx.Request().Context(), c.ID, from, to, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "computing warnings")
	}
	if rows == nil {
		rows = []attendance.WarningRow{}
	}
	return rows, nil
}

func (api *attendanceApi) absentStudents(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.clubSvc, ctx.Param("id"))
	if err != nil {
		return err
	}

	rows, err := api.svc.AbsentStudents(ctx.Request().Context(), c.ID, ctx.QueryParam("date"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *attendanceApi) export(ctx echo.Context) error {
	c, err := getOwnedClub(ctx, api.clubSvc, ctx.Param("id"))
	if err != nil {
		return err
	}
	from, to, err := parseRange(ctx)
	if err != nil {
		return err
	}

	buf, err := api.svc.ExportReport(ctx.Request().Context(), c.Name, c.ID, from, to)
	if err != nil {
		return errors.Wrap(err, "exporting report")
	}

	filename := fmt.Sprintf("attendance-%s.xlsx", c.ID)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return ctx.Blob(http.StatusOK, attendance.ReportContentType, buf.Bytes())
}

func (api *attendanceApi) attachTelegramPost(ctx echo.Context) error {
	var data TelegramPostRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TelegramPostRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	rec, err := api.svc.AttachTelegramPost(ctx.Request().Context(), ctx.Param("recordId"), data.Link)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

// reopen is the out-of-band unlock: it marks a submitted record editable
// again so the owning tutor can amend it. Admin only.
func (api *attendanceApi) reopen(ctx echo.Context) error {
	if err := api.svc.Reopen(ctx.Request().Context(), ctx.Param("recordId")); err != nil {
		return errors.Wrap(err, "reopening record")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Record reopened for editing."})
}

type TelegramPostRequest struct {
	Link string `json:"link" validate:"required,url"`
}

func (tr *TelegramPostRequest) Validate() error {
	tr.Link = core.CleanString(tr.Link)
	return core.Validate.Struct(tr)
}
