package main

import (
	"log"

	"github.com/psds-microservice/voice-support/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
