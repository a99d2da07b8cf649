package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

func TestOperatorToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	app := fiber.New()
	app.Use(OperatorToken(hash))
	app.Post("/funds", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusAccepted) })
	app.Get("/funds", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	tests := []struct {
		name   string
		method string
		authz  string
		want   int
	}{
		{"missing token", fiber.MethodPost, "", fiber.StatusUnauthorized},
		{"wrong token", fiber.MethodPost, "Bearer nope", fiber.StatusUnauthorized},
		{"valid token", fiber.MethodPost, "Bearer s3cret", fiber.StatusAccepted},
		{"reads are open", fiber.MethodGet, "", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/funds", nil)
			if tt.authz != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.authz)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestOperatorTokenDisabled(t *testing.T) {
	app := fiber.New()
	app.Use(OperatorToken(nil))
	app.Post("/funds", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusAccepted) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/funds", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected open writes without a hash, got %d", resp.StatusCode)
	}
}
