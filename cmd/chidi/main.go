package main

import "github.com/chidihq/chidi-backend/internal/app"

func main() {
	err := app.NewChidiApp().
		Introspect(&app.ReportLoggerIntrospector{}).
		Run()
	if err != nil {
		panic(err)
	}
}
