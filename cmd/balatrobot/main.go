package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Serve   ServeCmd         `cmd:"" default:"withargs" help:"Wait for the game to connect and play it"`
	Eval    EvalCmd          `cmd:"" help:"Rank every five-card combination of a hand and show the discard plan"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("balatrobot"),
		kong.Description("Autonomous player for Balatro over the game's TCP bridge"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
