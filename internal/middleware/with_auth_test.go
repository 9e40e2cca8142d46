package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func okHandler(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}

func withLocals(userID interface{}, role interface{}) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != nil {
			c.Locals("user_id", userID)
		}
		if role != nil {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func TestWithAuthRequiresUser(t *testing.T) {
	app := fiber.New()
	app.Get("/", WithAuth(okHandler, AuthOptions{Role: AuthRoleAdmin}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithAuthAdminPassesTutorGate(t *testing.T) {
	app := fiber.New()
	app.Use(withLocals(uint(1), "admin"))
	app.Get("/", WithAuth(okHandler, AuthOptions{Role: AuthRoleTutor}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWithAuthRejectsWrongRole(t *testing.T) {
	app := fiber.New()
	app.Use(withLocals(uint(1), "user"))
	app.Get("/", WithAuth(okHandler, AuthOptions{Role: AuthRoleTutor}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

type stubTutorChecker struct {
	tutors map[uint]bool
	err    error
}

func (s *stubTutorChecker) IsTutor(_ context.Context, userID uint) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.tutors[userID], nil
}

func TestRequireTutorAdmitsTutorAndRewritesRole(t *testing.T) {
	app := fiber.New()
	app.Use(withLocals(uint(50), "user"))
	app.Use(RequireTutor(&stubTutorChecker{tutors: map[uint]bool{50: true}}))
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, AuthRoleTutor, c.Locals("user_role"))
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireTutorAdmitsAdminWithoutLookup(t *testing.T) {
	app := fiber.New()
	app.Use(withLocals(uint(1), "admin"))
	app.Use(RequireTutor(&stubTutorChecker{}))
	app.Get("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireTutorRejectsNonTutor(t *testing.T) {
	app := fiber.New()
	app.Use(withLocals(uint(7), "user"))
	app.Use(RequireTutor(&stubTutorChecker{}))
	app.Get("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireTutorRequiresAuthentication(t *testing.T) {
	app := fiber.New()
	app.Use(RequireTutor(&stubTutorChecker{}))
	app.Get("/", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
