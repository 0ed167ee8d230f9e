package main

import (
	"log"

	"github.com/vuducc/Social-app/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
