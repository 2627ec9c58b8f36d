package main

import (
	"os"

	"github.com/wslogin/google-auth/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
