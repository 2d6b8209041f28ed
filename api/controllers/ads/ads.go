package ads

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/themelab-io/themeboard-backend/api/middleware"
	"github.com/themelab-io/themeboard-backend/api/responses"
	"github.com/themelab-io/themeboard-backend/api/validators"
	internalads "github.com/themelab-io/themeboard-backend/internal/ads"
	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
	pkgerrors "github.com/themelab-io/themeboard-backend/pkg/errors"
	"github.com/themelab-io/themeboard-backend/pkg/logger"
	"github.com/themelab-io/themeboard-backend/pkg/pagination"
)

const maxEstimateDays = 365

type submitRequest struct {
	ThemeID      string `json:"theme_id" validate:"required,uuid"`
	DurationDays int    `json:"duration_days" validate:"omitempty,min=1"`
}

type adRequestView struct {
	ID            uuid.UUID             `json:"id"`
	ThemeID       uuid.UUID             `json:"theme_id"`
	Status        enums.AdRequestStatus `json:"status"`
	QueuePosition *int                  `json:"queue_position,omitempty"`
	DisplayOrder  *int                  `json:"display_order,omitempty"`
	DurationDays  int                   `json:"duration_days"`
	RemainingDays int                   `json:"remaining_days"`
	PricePoints   int64                 `json:"price_points"`
	ClickCount    int64                 `json:"click_count"`
	ExposureCount int64                 `json:"exposure_count"`
	RequestedAt   time.Time             `json:"requested_at"`
	StartedAt     *time.Time            `json:"started_at,omitempty"`
	ExpiresAt     *time.Time            `json:"expires_at,omitempty"`
	CanceledAt    *time.Time            `json:"canceled_at,omitempty"`
}

func newAdRequestView(request models.AdRequest) adRequestView {
	return adRequestView{
		ID:            request.ID,
		ThemeID:       request.ThemeID,
		Status:        request.Status,
		QueuePosition: request.QueuePosition,
		DisplayOrder:  request.DisplayOrder,
		DurationDays:  request.DurationDays,
		RemainingDays: request.RemainingDays,
		PricePoints:   request.PricePoints,
		ClickCount:    request.ClickCount,
		ExposureCount: request.ExposureCount,
		RequestedAt:   request.RequestedAt,
		StartedAt:     request.StartedAt,
		ExpiresAt:     request.ExpiresAt,
		CanceledAt:    request.CanceledAt,
	}
}

func newAdRequestViews(requests []models.AdRequest) []adRequestView {
	views := make([]adRequestView, 0, len(requests))
	for _, request := range requests {
		views = append(views, newAdRequestView(request))
	}
	return views
}

// Submit places a new placement request for the authenticated user.
func Submit(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		userID, role, err := parseActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body submitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		themeID, err := uuid.Parse(body.ThemeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid theme id"))
			return
		}

		result, err := svc.Submit(r.Context(), internalads.SubmitInput{
			ThemeID:      themeID,
			UserID:       userID,
			DurationDays: body.DurationDays,
			ActorRole:    role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Cancel withdraws a queued placement request owned by the authenticated user.
func Cancel(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		userID, role, err := parseActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adRequestID, err := parseAdRequestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Cancel(r.Context(), internalads.CancelInput{
			AdRequestID: adRequestID,
			UserID:      userID,
			ActorRole:   role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// Mine lists the authenticated user's placement requests, newest first.
func Mine(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		userID, _, err := parseActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := svc.ListByUser(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAdRequestViews(requests))
	}
}

// Detail returns a single placement request visible to its owner or an admin.
func Detail(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		userID, role, err := parseActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adRequestID, err := parseAdRequestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Get(r.Context(), adRequestID, userID, role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAdRequestView(*request))
	}
}

// Exposure reports the projected impression counts for the current board.
func Exposure(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		days, err := validators.ParseQueryInt(r, "days", 1, 1, maxEstimateDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		estimate, err := svc.EstimateExposure(r.Context(), days)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, estimate)
	}
}

// AdminList returns placement requests filtered by status, in scheduler order.
func AdminList(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		status, err := enums.ParseAdRequestStatus(strings.TrimSpace(r.URL.Query().Get("status")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := svc.ListByStatus(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newAdRequestViews(requests))
	}
}

// TrackClick records one click against an ad request. Public, unauthenticated.
func TrackClick(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return trackHandler(svc, logg, func(r *http.Request, id uuid.UUID) error {
		return svc.TrackClick(r.Context(), id)
	})
}

// TrackExposure records one rotation impression against an ad request. Public, unauthenticated.
func TrackExposure(svc internalads.Service, logg *logger.Logger) http.HandlerFunc {
	return trackHandler(svc, logg, func(r *http.Request, id uuid.UUID) error {
		return svc.TrackExposure(r.Context(), id)
	})
}

func trackHandler(svc internalads.Service, logg *logger.Logger, track func(*http.Request, uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ads service unavailable"))
			return
		}

		adRequestID, err := parseAdRequestID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := track(r, adRequestID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "recorded"})
	}
}

func parseActor(r *http.Request) (uuid.UUID, enums.ActorRole, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return userID, enums.ActorRole(middleware.RoleFromContext(r.Context())), nil
}

func parseAdRequestID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "adRequestID"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "ad request id is required")
	}
	adRequestID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ad request id")
	}
	return adRequestID, nil
}
