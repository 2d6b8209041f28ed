package ads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/themelab-io/themeboard-backend/api/middleware"
	internalads "github.com/themelab-io/themeboard-backend/internal/ads"
	"github.com/themelab-io/themeboard-backend/pkg/db/models"
	"github.com/themelab-io/themeboard-backend/pkg/enums"
)

type stubAdsService struct {
	submit        func(ctx context.Context, input internalads.SubmitInput) (*internalads.SubmitResult, error)
	cancel        func(ctx context.Context, input internalads.CancelInput) (*internalads.CancelResult, error)
	get           func(ctx context.Context, adRequestID, userID uuid.UUID, role enums.ActorRole) (*models.AdRequest, error)
	listByStatus  func(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error)
	listByUser    func(ctx context.Context, userID uuid.UUID, limit int) ([]models.AdRequest, error)
	estimate      func(ctx context.Context, days int) (*internalads.ExposureEstimate, error)
	trackClick    func(ctx context.Context, adRequestID uuid.UUID) error
	trackExposure func(ctx context.Context, adRequestID uuid.UUID) error
}

func (s *stubAdsService) Submit(ctx context.Context, input internalads.SubmitInput) (*internalads.SubmitResult, error) {
	if s.submit != nil {
		return s.submit(ctx, input)
	}
	return &internalads.SubmitResult{}, nil
}

func (s *stubAdsService) Cancel(ctx context.Context, input internalads.CancelInput) (*internalads.CancelResult, error) {
	if s.cancel != nil {
		return s.cancel(ctx, input)
	}
	return &internalads.CancelResult{}, nil
}

func (s *stubAdsService) Get(ctx context.Context, adRequestID, userID uuid.UUID, role enums.ActorRole) (*models.AdRequest, error) {
	if s.get != nil {
		return s.get(ctx, adRequestID, userID, role)
	}
	return &models.AdRequest{}, nil
}

func (s *stubAdsService) ListByStatus(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error) {
	if s.listByStatus != nil {
		return s.listByStatus(ctx, status, limit)
	}
	return nil, nil
}

func (s *stubAdsService) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AdRequest, error) {
	if s.listByUser != nil {
		return s.listByUser(ctx, userID, limit)
	}
	return nil, nil
}

func (s *stubAdsService) EstimateExposure(ctx context.Context, days int) (*internalads.ExposureEstimate, error) {
	if s.estimate != nil {
		return s.estimate(ctx, days)
	}
	return &internalads.ExposureEstimate{}, nil
}

func (s *stubAdsService) TrackClick(ctx context.Context, adRequestID uuid.UUID) error {
	if s.trackClick != nil {
		return s.trackClick(ctx, adRequestID)
	}
	return nil
}

func (s *stubAdsService) TrackExposure(ctx context.Context, adRequestID uuid.UUID) error {
	if s.trackExposure != nil {
		return s.trackExposure(ctx, adRequestID)
	}
	return nil
}

func authedRequest(req *http.Request, userID uuid.UUID, role enums.ActorRole) *http.Request {
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
	return req.WithContext(middleware.WithRole(req.Context(), string(role)))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	ctx := chi.NewRouteContext()
	ctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))
}

func TestSubmitPassesActorAndBody(t *testing.T) {
	userID := uuid.New()
	themeID := uuid.New()
	resultID := uuid.New()

	svc := &stubAdsService{
		submit: func(ctx context.Context, input internalads.SubmitInput) (*internalads.SubmitResult, error) {
			if input.UserID != userID {
				t.Fatalf("unexpected user id %s", input.UserID)
			}
			if input.ThemeID != themeID {
				t.Fatalf("unexpected theme id %s", input.ThemeID)
			}
			if input.DurationDays != 14 {
				t.Fatalf("unexpected duration %d", input.DurationDays)
			}
			return &internalads.SubmitResult{
				ID:          resultID,
				Status:      enums.AdRequestStatusActive,
				PricePoints: 1400,
			}, nil
		},
	}

	body := `{"theme_id":"` + themeID.String() + `","duration_days":14}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ads", strings.NewReader(body))
	req = authedRequest(req, userID, enums.ActorRoleUser)

	resp := httptest.NewRecorder()
	Submit(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}

	var envelope struct {
		Data internalads.SubmitResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != resultID || envelope.Data.PricePoints != 1400 {
		t.Fatalf("unexpected submit result in response")
	}
}

func TestSubmitRejectsUnknownFields(t *testing.T) {
	svc := &stubAdsService{
		submit: func(ctx context.Context, input internalads.SubmitInput) (*internalads.SubmitResult, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	body := `{"theme_id":"` + uuid.NewString() + `","price_points":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ads", strings.NewReader(body))
	req = authedRequest(req, uuid.New(), enums.ActorRoleUser)

	resp := httptest.NewRecorder()
	Submit(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestSubmitRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ads", strings.NewReader(`{}`))

	resp := httptest.NewRecorder()
	Submit(&stubAdsService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCancelParsesPathID(t *testing.T) {
	userID := uuid.New()
	adRequestID := uuid.New()

	svc := &stubAdsService{
		cancel: func(ctx context.Context, input internalads.CancelInput) (*internalads.CancelResult, error) {
			if input.AdRequestID != adRequestID {
				t.Fatalf("unexpected ad request id %s", input.AdRequestID)
			}
			if input.UserID != userID {
				t.Fatalf("unexpected user id %s", input.UserID)
			}
			return &internalads.CancelResult{ID: adRequestID, RefundedPoints: 700}, nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/ads/"+adRequestID.String(), nil)
	req = authedRequest(req, userID, enums.ActorRoleUser)
	req = withURLParam(req, "adRequestID", adRequestID.String())

	resp := httptest.NewRecorder()
	Cancel(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data internalads.CancelResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.RefundedPoints != 700 {
		t.Fatalf("unexpected refund %d", envelope.Data.RefundedPoints)
	}
}

func TestCancelRejectsMalformedID(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/ads/not-a-uuid", nil)
	req = authedRequest(req, uuid.New(), enums.ActorRoleUser)
	req = withURLParam(req, "adRequestID", "not-a-uuid")

	resp := httptest.NewRecorder()
	Cancel(&stubAdsService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMineReturnsViews(t *testing.T) {
	userID := uuid.New()
	now := time.Now().UTC()
	order := 1

	svc := &stubAdsService{
		listByUser: func(ctx context.Context, incoming uuid.UUID, limit int) ([]models.AdRequest, error) {
			if incoming != userID {
				t.Fatalf("unexpected user id %s", incoming)
			}
			if limit != 5 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []models.AdRequest{
				{
					ID:           uuid.New(),
					ThemeID:      uuid.New(),
					UserID:       userID,
					Status:       enums.AdRequestStatusActive,
					DisplayOrder: &order,
					DurationDays: 7,
					PricePoints:  700,
					RequestedAt:  now,
				},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ads?limit=5", nil)
	req = authedRequest(req, userID, enums.ActorRoleUser)

	resp := httptest.NewRecorder()
	Mine(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data []adRequestView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("expected one view got %d", len(envelope.Data))
	}
	if envelope.Data[0].Status != enums.AdRequestStatusActive || envelope.Data[0].DisplayOrder == nil {
		t.Fatalf("view fields not mapped")
	}
}

func TestExposureParsesDays(t *testing.T) {
	svc := &stubAdsService{
		estimate: func(ctx context.Context, days int) (*internalads.ExposureEstimate, error) {
			if days != 7 {
				t.Fatalf("unexpected days %d", days)
			}
			return &internalads.ExposureEstimate{
				ActiveCount:            2,
				DailyCycles:            14400,
				EstimatedDailyExposure: 7200,
				EstimatedTotalExposure: 50400,
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ads/exposure?days=7", nil)

	resp := httptest.NewRecorder()
	Exposure(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data internalads.ExposureEstimate `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.EstimatedTotalExposure != 50400 {
		t.Fatalf("unexpected total exposure %d", envelope.Data.EstimatedTotalExposure)
	}
}

func TestAdminListParsesStatus(t *testing.T) {
	svc := &stubAdsService{
		listByStatus: func(ctx context.Context, status enums.AdRequestStatus, limit int) ([]models.AdRequest, error) {
			if status != enums.AdRequestStatusPendingQueue {
				t.Fatalf("unexpected status %s", status)
			}
			if limit != 50 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/ads?status=pending_queue&limit=50", nil)
	req = authedRequest(req, uuid.New(), enums.ActorRoleAdmin)

	resp := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAdminListRejectsUnknownStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/ads?status=bogus", nil)
	req = authedRequest(req, uuid.New(), enums.ActorRoleAdmin)

	resp := httptest.NewRecorder()
	AdminList(&stubAdsService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestTrackClickRecordsEvent(t *testing.T) {
	adRequestID := uuid.New()
	tracked := false

	svc := &stubAdsService{
		trackClick: func(ctx context.Context, incoming uuid.UUID) error {
			if incoming != adRequestID {
				t.Fatalf("unexpected ad request id %s", incoming)
			}
			tracked = true
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/public/ads/"+adRequestID.String()+"/click", nil)
	req = withURLParam(req, "adRequestID", adRequestID.String())

	resp := httptest.NewRecorder()
	TrackClick(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !tracked {
		t.Fatal("click was not forwarded to the service")
	}
}
