package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorcenter/core/attendance"
)

type attendanceApi struct {
	svc        attendance.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc attendance.ServiceInterface,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := attendanceApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	ag := g.Group("/attendance", jwt)
	ag.POST("/check-in", api.checkIn, entityMiddleware())
	ag.POST("/proximity", api.proximity, entityMiddleware())
	ag.POST("/mark", api.mark, adminMiddleware())
	ag.GET("/report", api.report, adminMiddleware())

	eg := g.Group("/entities/:id", jwt, selfOrAdminMiddleware())
	eg.GET("/attendance", api.entityAttendance)
}

// Handlers

func (api *attendanceApi) checkIn(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data attendance.LocationRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LocationRequest")
	}

	rec, err := api.svc.SubmitAttendance(ctx.Request().Context(), claims.Subject, data.Location, attendance.NowFunc())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) proximity(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data attendance.LocationRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LocationRequest")
	}

	res, err := api.svc.VerifyProximity(ctx.Request().Context(), claims.Subject, data.Location)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data attendance.MarkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	data.ActorID = claims.Subject

	rec, err := api.svc.MarkAttendance(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *attendanceApi) report(ctx echo.Context) error {
	var query attendance.ReportQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to ReportQuery")
	}
	if err := query.Validate(api.validate); err != nil {
		return err
	}

	rows, err := api.svc.BuildMonthlyReport(ctx.Request().Context(), query)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *attendanceApi) entityAttendance(ctx echo.Context) error {
	var query SummaryQuery
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to SummaryQuery")
	}
	if err := api.validate.Struct(query); err != nil {
		return err
	}

	row, err := api.svc.EntitySummary(ctx.Request().Context(), ctx.Param("id"), query.Year, query.Month)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, row)
}

type (
	// SummaryQuery defaults to the current month.
	SummaryQuery struct {
		Year  int `query:"year" validate:"omitempty,min=1970,max=9999"`
		Month int `query:"month" validate:"omitempty,min=1,max=12"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)
