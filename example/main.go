package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jpalmerr/sbar"
)

// weather is a custom producer reading the mock weather service.
func weather(ctx context.Context, params []string) (string, error) {
	url := "http://localhost:9999/weather"
	if len(params) > 0 {
		url = params[0]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var w struct {
		Sky  string `json:"sky"`
		Temp int    `json:"temp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %d°C", w.Sky, w.Temp), nil
}

func main() {
	// start mock server (see mock_server.go)
	go StartMockWeatherServer(":9999")
	time.Sleep(100 * time.Millisecond)

	items := []sbar.Item{
		sbar.MustItem("weather",
			sbar.WithInterval(5),
			sbar.WithTimeout(2*time.Second),
			sbar.WithColors("#83a598", ""),
		),
		sbar.MustItem("load", sbar.WithInterval(5)),
		sbar.MustItem("memory", sbar.WithInterval(10)),
		sbar.MustItem("time",
			sbar.WithParams("%H:%M:%S"),
			sbar.WithInterval(1),
			sbar.WithTrigger(44),
			sbar.WithColors("#000000", "#ebdbb2"),
		),
	}

	// logs go to stderr so they do not mix with the bar on stdout
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	b, err := sbar.New(
		sbar.WithItems(items...),
		sbar.WithProducer("weather", weather),
		sbar.WithDecoration(" ", " "),
		sbar.WithColorMode(sbar.MarkupANSI),
		sbar.WithSink(sbar.WriterSink(os.Stdout)),
		sbar.WithHTTPAddr("127.0.0.1:8080"),
		sbar.WithTitle("sbar demo"),
		sbar.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to create bar", "error", err)
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  sbar demo")
	fmt.Fprintln(os.Stderr, "    live page:  http://localhost:8080")
	fmt.Fprintf(os.Stderr, "    refresh:    kill -44 %d  (or curl -X POST localhost:8080/api/trigger/44)\n", os.Getpid())
	fmt.Fprintln(os.Stderr, "    stop:       Ctrl+C")
	fmt.Fprintln(os.Stderr)

	// the bar handles SIGINT/SIGTERM itself
	if err := b.Run(context.Background()); err != nil {
		slog.Error("sbar error", "error", err)
		os.Exit(1)
	}
}
