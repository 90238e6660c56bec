package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockWeather tracks the current conditions and when they next change.
type mockWeather struct {
	skyIdx       int
	temp         int
	nextChangeAt time.Time
}

// StartMockWeatherServer runs a mock weather endpoint whose conditions drift
// every 10-30 seconds. Call this in a goroutine before starting the bar.
func StartMockWeatherServer(addr string) {
	var (
		mu    sync.Mutex
		state = mockWeather{temp: 18, nextChangeAt: time.Now().Add(10 * time.Second)}
	)
	skies := []string{"sunny", "cloudy", "rain"}

	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		// simulate small latency variance
		time.Sleep(time.Duration(20+rand.Intn(80)) * time.Millisecond)

		mu.Lock()
		if time.Now().After(state.nextChangeAt) {
			old := skies[state.skyIdx]
			state.skyIdx = (state.skyIdx + 1) % len(skies)
			state.temp += rand.Intn(5) - 2
			state.nextChangeAt = time.Now().Add(time.Duration(10+rand.Intn(21)) * time.Second)
			slog.Info("weather change", "from", old, "to", skies[state.skyIdx], "temp", state.temp)
		}
		resp := map[string]any{
			"sky":  skies[state.skyIdx],
			"temp": state.temp,
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
