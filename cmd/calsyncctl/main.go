package main

import (
	"context"
	"log"

	"github.com/labkit-dev/calsync/cmd/calsyncctl/cmd"
	"github.com/labkit-dev/calsync/tracing"
)

func main() {
	tp, err := tracing.InitTracerProvider("calsync-calsyncctl")
	if err != nil {
		log.Fatalf("Failed to initialize TracerProvider: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down TracerProvider: %v", err)
		}
	}()

	cmd.Execute()
}
