// Typed example: JSON convenience methods that decode straight into structs
// while keeping access to status and headers through TypedResponse.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/guptavishal-xm1/mokka"
)

type slideshow struct {
	Slideshow struct {
		Author string `json:"author"`
		Title  string `json:"title"`
	} `json:"slideshow"`
}

type echo struct {
	JSON map[string]any `json:"json"`
	URL  string         `json:"url"`
}

func main() {
	client := mokka.New(
		mokka.WithMaxAttempts(3),
		mokka.WithCache(time.Minute),
	)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out slideshow
	if err := client.GetJSON(ctx, "https://httpbin.org/json", &out); err != nil {
		log.Fatalf("GetJSON failed: %v", err)
	}
	fmt.Printf("slideshow %q by %s\n", out.Slideshow.Title, out.Slideshow.Author)

	// GetTyped also returns status, headers and the raw body.
	typed, err := client.GetTyped(ctx, "https://httpbin.org/json", &out)
	if err != nil {
		log.Fatalf("GetTyped failed: %v", err)
	}
	fmt.Printf("status=%d contentType=%s bytes=%d\n",
		typed.StatusCode, typed.Header.Get("Content-Type"), len(typed.Body))

	var echoed echo
	payload := map[string]string{"hello": "world"}
	if err := client.PostJSON(ctx, "https://httpbin.org/post", payload, &echoed); err != nil {
		log.Fatalf("PostJSON failed: %v", err)
	}
	fmt.Println("echoed:", echoed.JSON)
}
