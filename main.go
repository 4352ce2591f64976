package main

import "incidentbot/internal/app"

func main() {
	app.Main()
}
