package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/service"
)

type stubMarkingService struct {
	listResponse  []dto.MarkingResponse
	gradeResponse dto.MarkingResponse
	gradeErr      error
	lastActor     service.ActivityActor
}

func (s *stubMarkingService) Sync(_ context.Context, _ service.ActivityActor) (dto.SyncResponse, error) {
	return dto.SyncResponse{Created: 3}, nil
}

func (s *stubMarkingService) List(_ context.Context, actor service.ActivityActor, _ dto.MarkingListFilter) ([]dto.MarkingResponse, error) {
	s.lastActor = actor
	return s.listResponse, nil
}

func (s *stubMarkingService) Get(_ context.Context, _ service.ActivityActor, _ uint) (dto.MarkingResponse, error) {
	return s.gradeResponse, s.gradeErr
}

func (s *stubMarkingService) Grade(_ context.Context, actor service.ActivityActor, _ uint, _ dto.GradeRequest) (dto.MarkingResponse, error) {
	s.lastActor = actor
	return s.gradeResponse, s.gradeErr
}

func newMarkingApp(svc service.MarkingService, role string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(50))
		c.Locals("user_role", role)
		return c.Next()
	})
	NewMarkingHandler(svc, zerolog.Nop()).Register(app.Group("/submissions"))
	return app
}

func TestMarkingHandlerListPassesActor(t *testing.T) {
	svc := &stubMarkingService{listResponse: []dto.MarkingResponse{{ID: 1}}}
	app := newMarkingApp(svc, "tutor")

	req := httptest.NewRequest(http.MethodGet, "/submissions/?category=forensics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(50), svc.lastActor.ID)
	require.Equal(t, "tutor", svc.lastActor.Role)
}

func TestMarkingHandlerListRejectsBadFilter(t *testing.T) {
	app := newMarkingApp(&stubMarkingService{}, "admin")

	req := httptest.NewRequest(http.MethodGet, "/submissions/?student_id=abc", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMarkingHandlerGradePatch(t *testing.T) {
	mark := 90
	svc := &stubMarkingService{gradeResponse: dto.MarkingResponse{ID: 5, Mark: &mark}}
	app := newMarkingApp(svc, "admin")

	resp := patchJSON(t, app, "/submissions/5", dto.GradeRequest{Mark: &mark})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Data dto.MarkingResponse `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, uint(5), payload.Data.ID)
	require.Equal(t, 90, *payload.Data.Mark)
}

func TestMarkingHandlerGradeNotPermitted(t *testing.T) {
	app := newMarkingApp(&stubMarkingService{gradeErr: service.ErrNotPermitted}, "tutor")

	resp := patchJSON(t, app, "/submissions/5", dto.GradeRequest{Mark: intPtrHandler(60)})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestMarkingHandlerGradeNotFound(t *testing.T) {
	app := newMarkingApp(&stubMarkingService{gradeErr: service.ErrMarkingNotFound}, "admin")

	resp := patchJSON(t, app, "/submissions/5", dto.GradeRequest{Mark: intPtrHandler(60)})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func patchJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(encoded))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func intPtrHandler(v int) *int { return &v }
