package main

import (
	"github.com/joho/godotenv"

	"github.com/xuyuanfang/WHULibSeatReservation/cmd"
)

func main() {
	// .env is optional; real env vars win over it.
	_ = godotenv.Load()
	cmd.Execute()
}
