package main

import (
	"os"

	"github.com/Guqie/news-workflow/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
