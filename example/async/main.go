// Async example: fan out requests onto the dispatcher's worker pool, await
// handles, cancel one mid-flight and use the callback variant.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/guptavishal-xm1/mokka"
)

func main() {
	client := mokka.New(
		mokka.WithMaxAttempts(3),
		mokka.WithAsyncWorkers(8),
		mokka.WithAsyncQueueSize(32),
	)
	defer client.Close()

	ctx := context.Background()

	// Fan out a handful of requests and await them all.
	urls := []string{
		"https://httpbin.org/json",
		"https://httpbin.org/uuid",
		"https://httpbin.org/headers",
	}
	handles := make([]*mokka.Handle, 0, len(urls))
	for _, url := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			log.Fatalf("building request: %v", err)
		}
		handles = append(handles, client.DoAsync(req))
	}
	for i, handle := range handles {
		resp, err := handle.Response()
		if err != nil {
			fmt.Printf("%s failed: %v\n", urls[i], err)
			continue
		}
		fmt.Printf("%s: %s\n", urls[i], resp.Status)
		resp.Body.Close()
	}

	// A slow request canceled before it finishes.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://httpbin.org/delay/10", nil)
	if err != nil {
		log.Fatalf("building request: %v", err)
	}
	slow := client.DoAsync(req)
	time.Sleep(100 * time.Millisecond)
	slow.Cancel()
	if _, err := slow.Response(); err != nil {
		fmt.Println("canceled as expected:", err)
	}

	// Callback variant: the outcome is delivered on a worker goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, "https://httpbin.org/json", nil)
	if err != nil {
		log.Fatalf("building request: %v", err)
	}
	client.DoWithCallback(req, func(resp *http.Response, err error) {
		defer wg.Done()
		if err != nil {
			fmt.Println("callback error:", err)
			return
		}
		fmt.Println("callback:", resp.Status)
		resp.Body.Close()
	})
	wg.Wait()
}
