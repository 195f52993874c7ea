package main

import "fiksareport/internal/app"

func main() {
	app.Main()
}
