package main

import (
	"log"

	"github.com/joho/godotenv"

	"aprsd/internal/config"
	"aprsd/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	s, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	if err := s.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
