package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/drfms/drfms/internal/logging"
)

func setupIdempotencyApp(t *testing.T) (*fiber.App, *int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls int32
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/funds/:address/donations", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"submission": n})
	})
	app.Post("/funds", func(c *fiber.Ctx) error {
		atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ok": true})
	})
	app.Post("/flaky", func(c *fiber.Ctx) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "node down"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, key string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(`{"amount":"1"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body), resp.Header.Get(idempotentReplayHeader)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _ := setupIdempotencyApp(t)
	status, _, _ := post(t, app, "/funds/0xaaa/donations", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReplaysDonation(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	status, body, replayed := post(t, app, "/funds/0xaaa/donations", "abc123")
	if status != fiber.StatusCreated || replayed != "" {
		t.Fatalf("unexpected first response %d replayed=%q", status, replayed)
	}

	status2, body2, replayed2 := post(t, app, "/funds/0xaaa/donations", "abc123")
	if status2 != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status2)
	}
	if body2 != body {
		t.Fatalf("expected cached payload %s got %s", body, body2)
	}
	if replayed2 != "true" {
		t.Fatal("replayed response should be marked")
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("donation submitted %d times", atomic.LoadInt32(calls))
	}
}

func TestIdempotencyKeysAreScopedToRoute(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	post(t, app, "/funds/0xaaa/donations", "same-key")
	status, _, replayed := post(t, app, "/funds", "same-key")
	if status != fiber.StatusAccepted || replayed != "" {
		t.Fatalf("different route must not replay, got %d replayed=%q", status, replayed)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected both handlers to run, got %d calls", atomic.LoadInt32(calls))
	}
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	if status, _, _ := post(t, app, "/flaky", "retry-me"); status != fiber.StatusBadGateway {
		t.Fatalf("expected first attempt to fail, got %d", status)
	}
	status, _, replayed := post(t, app, "/flaky", "retry-me")
	if status != fiber.StatusCreated || replayed != "" {
		t.Fatalf("retry should reach the handler, got %d replayed=%q", status, replayed)
	}
	if atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expected 2 handler calls, got %d", atomic.LoadInt32(calls))
	}
}

func TestIdempotencySkipsReads(t *testing.T) {
	app, _ := setupIdempotencyApp(t)
	app.Get("/funds/:address", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/funds/0xaaa", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("reads must not need an Idempotency-Key, got %d", resp.StatusCode)
	}
}
