package main

import (
	"context"

	"github.com/RLAlpha49/shelfarc/cmd/pricelookup-cli/commands"
	"github.com/RLAlpha49/shelfarc/lib/telemetry"
)

func main() {
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
