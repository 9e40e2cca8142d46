package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/marking-hub-api/internal/dto"
	"github.com/noah-isme/marking-hub-api/internal/service"
)

type stubTokenService struct {
	issueResponse  dto.TokenIssueResponse
	issueErr       error
	redeemResponse dto.TokenRedeemResponse
	redeemErr      error
}

func (s *stubTokenService) Issue(_ context.Context, _ dto.TokenIssueRequest, _ *uint) (dto.TokenIssueResponse, error) {
	return s.issueResponse, s.issueErr
}

func (s *stubTokenService) Redeem(_ context.Context, _ dto.TokenRedeemRequest) (dto.TokenRedeemResponse, error) {
	return s.redeemResponse, s.redeemErr
}

func newTokenApp(svc service.TokenService) *fiber.App {
	app := fiber.New()
	h := NewTokenHandler(svc, "shared-secret", zerolog.Nop())
	h.Register(app.Group("/tokens"))
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestTokenHandlerIssueRequiresSecret(t *testing.T) {
	app := newTokenApp(&stubTokenService{})

	resp := postJSON(t, app, "/tokens/", dto.TokenIssueRequest{StudentID: 1, ChallengeID: 10}, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = postJSON(t, app, "/tokens/", dto.TokenIssueRequest{StudentID: 1, ChallengeID: 10}, map[string]string{
		"X-Autograder-Secret": "wrong",
	})
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTokenHandlerIssueCreated(t *testing.T) {
	svc := &stubTokenService{
		issueResponse: dto.TokenIssueResponse{
			RawToken:  "deadbeef",
			TokenHash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	app := newTokenApp(svc)

	resp := postJSON(t, app, "/tokens/", dto.TokenIssueRequest{StudentID: 1, ChallengeID: 10}, map[string]string{
		"X-Autograder-Secret": "shared-secret",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Success bool                   `json:"success"`
		Data    dto.TokenIssueResponse `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Success)
	require.Equal(t, "deadbeef", payload.Data.RawToken)
}

func TestTokenHandlerIssueUnknownStudent(t *testing.T) {
	app := newTokenApp(&stubTokenService{issueErr: service.ErrStudentNotFound})

	resp := postJSON(t, app, "/tokens/", dto.TokenIssueRequest{StudentID: 99, ChallengeID: 10}, map[string]string{
		"X-Autograder-Secret": "shared-secret",
	})
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestTokenHandlerRedeemOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "hash mismatch", err: service.ErrHashMismatch, status: fiber.StatusForbidden},
		{name: "replayed", err: service.ErrTokenReplayed, status: fiber.StatusForbidden},
		{name: "expired", err: service.ErrTokenExpired, status: fiber.StatusForbidden},
		{name: "unknown token", err: service.ErrTokenNotFound, status: fiber.StatusNotFound},
		{name: "empty flag", err: service.ErrEmptyFlag, status: fiber.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTokenApp(&stubTokenService{redeemErr: tc.err})

			resp := postJSON(t, app, "/tokens/redeem", dto.TokenRedeemRequest{
				StudentID:   1,
				ChallengeID: 10,
				Flag:        "CTF{x}",
				RawToken:    "deadbeef",
				ClaimedHash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			}, nil)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestTokenHandlerRedeemAccepted(t *testing.T) {
	app := newTokenApp(&stubTokenService{
		redeemResponse: dto.TokenRedeemResponse{Correct: true, SubmissionID: 7},
	})

	resp := postJSON(t, app, "/tokens/redeem", dto.TokenRedeemRequest{
		StudentID:   1,
		ChallengeID: 10,
		Flag:        "CTF{x}",
		RawToken:    "deadbeef",
		ClaimedHash: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var payload struct {
		Data dto.TokenRedeemResponse `json:"data"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.True(t, payload.Data.Correct)
	require.Equal(t, uint(7), payload.Data.SubmissionID)
}
