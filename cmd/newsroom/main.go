package main

import (
	"newsroom/cmd/cmd"
	"newsroom/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
