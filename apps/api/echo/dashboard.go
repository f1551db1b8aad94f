package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Shukurulla/dogerek-tutor/core/attendance"
	"github.com/Shukurulla/dogerek-tutor/core/club"
)

type (
	dashboardClub struct {
		club.Club
		Statistics          attendance.Statistics `json:"statistics"`
		PendingApplications int                   `json:"pending_applications"`
	}

	dashboardResponse struct {
		TotalClubs          int             `json:"total_clubs"`
		TotalStudents       int             `json:"total_students"`
		PendingApplications int             `json:"pending_applications"`
		Clubs               []dashboardClub `json:"clubs"`
	}
)

// dashboard aggregates the landing-page numbers for the authenticated tutor:
// their clubs with all-time attendance statistics and pending application
// counts.
func (api *attendanceApi) dashboard(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	rctx := ctx.Request().Context()

	clubs, err := api.clubSvc.QueryByTutor(rctx, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying clubs")
	}
	apps, err := api.clubSvc.QueryApplications(rctx, claims.Subject, club.ApplicationPending)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	pendingByClub := make(map[string]int, len(clubs))
	for _, app := range apps {
		pendingByClub[app.ClubID]++
	}

	resp := dashboardResponse{Clubs: make([]dashboardClub, 0, len(clubs))}
	for _, c := range clubs {
		stats, err := api.svc.ClubStatistics(rctx, c.ID, attendance.SessionDate{}, attendance.SessionDate{})
		if err != nil {
			return errors.Wrap(err, "computing statistics")
		}
		resp.Clubs = append(resp.Clubs, dashboardClub{
			Club:                c,
			Statistics:          stats.Statistics,
			PendingApplications: pendingByClub[c.ID],
		})
		resp.TotalClubs++
		resp.TotalStudents += c.TotalStudents
		resp.PendingApplications += pendingByClub[c.ID]
	}
	return ctx.JSON(http.StatusOK, resp)
}
