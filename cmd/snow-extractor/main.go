package main

import (
	"context"

	"snow-extractor/cmd/snow-extractor/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
