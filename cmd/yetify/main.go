package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/yetify/yetify-cli/internal/app"
)

func main() {
	_ = godotenv.Load()
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
