package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gitlab.com/phishguard/clicmds"
)

func main() {
	app := cli.NewApp()
	app.Name = "phishguard"
	app.Version = "0.1"
	app.Usage = "Intercept browser navigations and block phishing sites"
	app.Commands = []*cli.Command{
		{
			Name:    "guard",
			Aliases: []string{"g"},
			Usage:   "run the navigation interception engine",
			Action:  clicmds.Guard,
			Flags:   clicmds.GuardFlags(),
		},
		{
			Name:    "check",
			Aliases: []string{"c"},
			Usage:   "classify a single url",
			Action:  clicmds.Check,
			Flags:   clicmds.CheckFlags(),
		},
		{
			Name:    "dbview",
			Usage:   "dump guard state and decision history",
			Action:  clicmds.DBView,
			Flags:   clicmds.DBViewFlags(),
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
