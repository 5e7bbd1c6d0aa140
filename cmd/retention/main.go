package main

import (
	"log"

	tool "github.com/reposync/admin-backend/internal/tools/retention"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
