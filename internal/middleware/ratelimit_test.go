package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/filevault/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func TestRateLimiterHandler(t *testing.T) {
	logger.SetOutput(io.Discard)
	limiter := NewRateLimiter(0.001, 2)

	app := fiber.New()
	app.Post("/login", limiter.Handler(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil), 5000)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		statuses = append(statuses, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			body := decodeBody(t, resp)
			if body["code"] != "RATE_001" {
				t.Fatalf("expected RATE_001, got %v", body)
			}
		}
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected statuses %v", statuses)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	app := fiber.New()
	app.Get("/", limiter.Handler(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), 5000)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 with limiting disabled, got %d", resp.StatusCode)
		}
	}
}

func TestRateLimiterSweep(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Now()
	limiter.now = func() time.Time { return now }

	limiter.get("10.0.0.1")
	now = now.Add(time.Minute)
	limiter.get("10.0.0.2")

	now = now.Add(limiterIdleTTL)
	if removed := limiter.Sweep(); removed != 1 {
		t.Fatalf("expected one idle limiter removed, got %d", removed)
	}
	if _, ok := limiter.clients["10.0.0.2"]; !ok {
		t.Fatal("expected recent limiter to survive")
	}
}
