// Basic example: a resilient GET with retries, rate limiting, caching,
// circuit breaking and deduplication, followed by a client with custom
// retry predicates and middleware.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/guptavishal-xm1/mokka"
)

const httpbinJSON = "https://httpbin.org/json"

func main() {
	// Batteries-included defaults.
	basic := mokka.New(
		mokka.WithMaxAttempts(4),
		mokka.WithInitialBackoff(100*time.Millisecond),
		mokka.WithMaxBackoff(5*time.Second),
		mokka.WithRateLimiter(10, time.Second),
		mokka.WithCache(2*time.Minute),
		mokka.WithCircuitBreaker(mokka.CircuitBreakerConfig{}),
		mokka.WithDeduplication(),
		mokka.WithSimpleLogger(),
	)
	defer basic.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := basic.Get(ctx, httpbinJSON)
	if err != nil {
		log.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	fmt.Println("basic:", resp.Status)

	// Custom predicates, interceptors and per-attempt middleware.
	custom := mokka.New(
		mokka.WithRetryPredicates(
			mokka.RetryOnTransportErrors(),
			mokka.RetryOnStatus(http.StatusBadGateway, http.StatusServiceUnavailable),
		),
		mokka.WithBackoff(mokka.NewDecorrelatedBackoff(50*time.Millisecond, 2*time.Second)),
		mokka.WithRequestInterceptors(mokka.SetHeaders(map[string]string{
			"User-Agent": "mokka-example/1.0",
		})),
		mokka.WithResponseInterceptors(mokka.PromoteHTTPErrors()),
		mokka.WithMiddleware(func(req *http.Request, next mokka.RoundTripper) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			fmt.Printf("attempt %s %s took %v\n", req.Method, req.URL, time.Since(start))
			return resp, err
		}),
	)
	defer custom.Close()

	resp, err = custom.Get(ctx, httpbinJSON)
	if err != nil {
		log.Fatalf("custom request failed: %v", err)
	}
	defer resp.Body.Close()
	fmt.Println("custom:", resp.Status)
}
