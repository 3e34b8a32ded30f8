package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"crf-system/internal/dto"
	"crf-system/internal/entities"
	"crf-system/internal/services"
	"crf-system/pkg/config"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/service"
	"crf-system/pkg/types"
	"crf-system/pkg/validation"
	"crf-system/pkg/websocket"
)

const (
	requesterID uint64 = 100
	itAdminID   uint64 = 33
)

type stubEngine struct {
	created    []services.CreateRequestInput
	actions    []constants.Action
	actionErr  error
	withdrawn  []uint64
	hiddenCRFs map[uint64]bool
}

func (s *stubEngine) CreateRequest(_ context.Context, in services.CreateRequestInput) (*entities.CRF, error) {
	s.created = append(s.created, in)
	return &entities.CRF{ID: 1, CRFNumber: "CRF/2026/001", RequesterID: in.ActorID, CategoryID: in.CategoryID, Issue: in.Issue, Status: constants.StatusCreated}, nil
}

func (s *stubEngine) ApplyAction(_ context.Context, crfID uint64, action constants.Action, _ uint64, _ services.ActionPayload) (*entities.CRF, error) {
	if s.actionErr != nil {
		return nil, s.actionErr
	}
	s.actions = append(s.actions, action)
	return &entities.CRF{ID: crfID, CRFNumber: "CRF/2026/001", Status: constants.StatusApprovedByDeptHead}, nil
}

func (s *stubEngine) ListVisible(_ context.Context, actorID uint64, _ types.Filter) ([]dto.CRFSummaryDTO, uint64, error) {
	return []dto.CRFSummaryDTO{{ID: 1, CRFNumber: "CRF/2026/001", RequesterID: actorID}}, 1, nil
}

func (s *stubEngine) GetRequest(_ context.Context, _ uint64, crfID uint64) (*dto.CRFDetailDTO, error) {
	if s.hiddenCRFs[crfID] {
		return nil, apperrors.ErrNotFound
	}
	return &dto.CRFDetailDTO{ID: crfID, CRFNumber: "CRF/2026/001"}, nil
}

func (s *stubEngine) GetTimeline(_ context.Context, crfID uint64) ([]entities.TimelineEntry, error) {
	return []entities.TimelineEntry{{ID: 1, CRFID: crfID}}, nil
}

func (s *stubEngine) ListAttachments(_ context.Context, _ uint64, _ uint64) ([]entities.Attachment, error) {
	return nil, nil
}

func (s *stubEngine) WithdrawRequest(_ context.Context, _ uint64, crfID uint64) error {
	s.withdrawn = append(s.withdrawn, crfID)
	return nil
}

type stubNotifications struct{}

func (stubNotifications) Deliver(context.Context, *entities.NotificationIntent) error { return nil }

func (stubNotifications) ListFailed(context.Context, types.Filter) ([]dto.FailedNotificationDTO, uint64, error) {
	return []dto.FailedNotificationDTO{{ID: 7, Status: string(constants.OutboxStatusDead)}}, 1, nil
}

type stubReference struct{}

func (stubReference) ListCategories(context.Context) ([]dto.CategoryDTO, error) {
	return []dto.CategoryDTO{{ID: 1, Name: "Hardware"}}, nil
}

type stubActors map[uint64]*entities.User

func (s stubActors) FindActor(_ context.Context, id uint64) (*entities.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrNotFound
}

type RouterTestSuite struct {
	suite.Suite
	Echo   *echo.Echo
	Engine *stubEngine
	JWT    service.JWTService
}

func (suite *RouterTestSuite) SetupTest() {
	e := echo.New()
	e.Validator = validation.New()

	suite.Engine = &stubEngine{hiddenCRFs: map[uint64]bool{}}
	suite.JWT = service.NewJWTService("test-secret", time.Hour, 24*time.Hour)

	cfg := &config.Config{Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000"}}
	svc := &Services{
		Engine:       suite.Engine,
		Export:       services.NewExportService(suite.Engine),
		Notification: stubNotifications{},
		Reference:    stubReference{},
		Actors: stubActors{
			requesterID: {ID: requesterID, Roles: nil},
			itAdminID:   {ID: itAdminID, Roles: []string{constants.RoleITAdmin}},
		},
	}
	InitRouter(e, svc, websocket.NewHub(zap.NewNop()), suite.JWT, cfg, zap.NewNop())
	suite.Echo = e
}

func (suite *RouterTestSuite) token(userID uint64) string {
	access, _, err := suite.JWT.GenerateTokens(userID)
	suite.Require().NoError(err)
	return access
}

func (suite *RouterTestSuite) do(req *http.Request, userID uint64) *httptest.ResponseRecorder {
	if userID != 0 {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+suite.token(userID))
	}
	rec := httptest.NewRecorder()
	suite.Echo.ServeHTTP(rec, req)
	return rec
}

func (suite *RouterTestSuite) TestMissingTokenIsRejected() {
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/api/crfs", nil), 0)
	suite.Equal(http.StatusUnauthorized, rec.Code)
}

func (suite *RouterTestSuite) TestListWithPagination() {
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/api/crfs?withPagination=true&limit=10", nil), requesterID)
	suite.Require().Equal(http.StatusOK, rec.Code)

	var resp struct {
		Status bool `json:"status"`
		Body   struct {
			List       []dto.CRFSummaryDTO    `json:"list"`
			Pagination map[string]interface{} `json:"pagination"`
		} `json:"body"`
	}
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	suite.True(resp.Status)
	suite.Len(resp.Body.List, 1)
	suite.EqualValues(1, resp.Body.Pagination["total_count"])
}

func (suite *RouterTestSuite) TestCreateCRFMultipart() {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	suite.Require().NoError(writer.WriteField("data", `{"category_id":1,"issue":"Printer does not print","extension":"1234"}`))
	suite.Require().NoError(writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/crfs", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := suite.do(req, requesterID)

	suite.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	suite.Require().Len(suite.Engine.created, 1)
	suite.Equal(requesterID, suite.Engine.created[0].ActorID)
	suite.Equal("1234", suite.Engine.created[0].Extension)
	suite.Contains(rec.Body.String(), "CRF/2026/001")
}

func (suite *RouterTestSuite) TestCreateCRFRequiresData() {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	suite.Require().NoError(writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/crfs", body)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := suite.do(req, requesterID)

	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Empty(suite.Engine.created)
}

func (suite *RouterTestSuite) TestApplyAction() {
	req := httptest.NewRequest(http.MethodPost, "/api/crfs/5/actions", strings.NewReader(`{"action":"APPROVE_DEPT"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := suite.do(req, requesterID)

	suite.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	suite.Equal([]constants.Action{constants.ActionApproveDept}, suite.Engine.actions)
}

func (suite *RouterTestSuite) TestApplyActionInvisibleAfterwards() {
	suite.Engine.hiddenCRFs[5] = true
	req := httptest.NewRequest(http.MethodPost, "/api/crfs/5/actions", strings.NewReader(`{"action":"REDIRECT_TO_IT","reason":"не наш профиль"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := suite.do(req, requesterID)

	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `"id":5`)
}

func (suite *RouterTestSuite) TestApplyActionErrors() {
	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{name: "unknown action", body: `{"action":"FLY_AWAY"}`, code: http.StatusBadRequest},
		{name: "unauthorized", body: `{"action":"APPROVE_DEPT"}`, err: apperrors.ErrUnauthorized, code: http.StatusForbidden},
		{name: "already processed", body: `{"action":"APPROVE_DEPT"}`, err: apperrors.ErrInvalidTransition, code: http.StatusConflict},
		{name: "conflict", body: `{"action":"APPROVE_DEPT"}`, err: apperrors.ErrPersistenceConflict, code: http.StatusConflict},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			suite.Engine.actionErr = tc.err
			req := httptest.NewRequest(http.MethodPost, "/api/crfs/5/actions", strings.NewReader(tc.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := suite.do(req, requesterID)
			suite.Equal(tc.code, rec.Code, rec.Body.String())
		})
	}
}

func (suite *RouterTestSuite) TestInvalidID() {
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/api/crfs/abc", nil), requesterID)
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *RouterTestSuite) TestHiddenCRFIsNotFound() {
	suite.Engine.hiddenCRFs[9] = true
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/api/crfs/9/timeline", nil), requesterID)
	suite.Equal(http.StatusNotFound, rec.Code)
}

func (suite *RouterTestSuite) TestWithdraw() {
	rec := suite.do(httptest.NewRequest(http.MethodDelete, "/api/crfs/3", nil), requesterID)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal([]uint64{3}, suite.Engine.withdrawn)
}

func (suite *RouterTestSuite) TestExport() {
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/api/crfs/export", nil), requesterID)
	suite.Require().Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Header().Get(echo.HeaderContentDisposition), ".xlsx")

	rec = suite.do(httptest.NewRequest(http.MethodGet, "/api/crfs/export?format=csv", nil), requesterID)
	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *RouterTestSuite) TestFailedNotificationsNeedAdminRole() {
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/api/notifications/failed", nil), requesterID)
	suite.Equal(http.StatusForbidden, rec.Code)

	rec = suite.do(httptest.NewRequest(http.MethodGet, "/api/notifications/failed", nil), itAdminID)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), string(constants.OutboxStatusDead))
}

func (suite *RouterTestSuite) TestCategories() {
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/api/categories", nil), requesterID)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), "Hardware")
}

func (suite *RouterTestSuite) TestMetrics() {
	rec := suite.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), 0)
	suite.Equal(http.StatusOK, rec.Code)
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
