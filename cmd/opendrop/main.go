package main

import (
	"log/slog"

	"github.com/MOHAMEDFAZ/OpenDrop/cmd/opendrop/cmd"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/logging"
)

func main() {
	logging.Init(slog.LevelError)
	cmd.Execute()
}
