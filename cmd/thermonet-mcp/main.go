package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rmax-ai/thermonet/pkg/mcp"
)

func main() {
	apiURL := flag.String("api", envOrDefault("THERMONET_API_URL", "http://127.0.0.1:8090"), "Base URL of thermonet-d API")
	flag.Parse()

	// stdout carries the protocol, diagnostics go to stderr
	s := mcp.NewServer(*apiURL)
	if err := s.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server failed: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
