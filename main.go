package main

import (
	"log"

	"ticketing/cmd"
	_ "ticketing/migrations"
)

func main() {
	if err := cmd.Start(); err != nil {
		log.Fatal(err)
	}
}
