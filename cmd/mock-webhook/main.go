// mock-webhook serves a local stand-in for the assistant backend.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/normanking/jarvis/internal/mockserver"
)

func main() {
	port := flag.Int("port", 5678, "port to listen on")
	path := flag.String("path", "/webhook/javispro212", "webhook endpoint path")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	srv := mockserver.NewServer(&mockserver.Config{Path: *path}, logger)
	addr := fmt.Sprintf(":%d", *port)

	logger.Info().
		Str("addr", addr).
		Str("path", *path).
		Msg("Mock webhook listening")

	if err := http.ListenAndServe(addr, srv); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}
