package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/MOHAMEDFAZ/OpenDrop/internal/config"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/transfer"
	"github.com/MOHAMEDFAZ/OpenDrop/internal/ui"
)

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// parseRoomInput accepts either a bare six-digit code or a join link
// carrying the code as a query parameter.
func parseRoomInput(input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("room code cannot be empty")
	}

	if strings.Contains(input, "://") {
		code, err := extractRoomCodeFromURL(input)
		if err != nil {
			return "", err
		}
		ui.PrintSuccessf("Extracted room code: %s", code)
		return code, nil
	}

	if !protocol.ValidRoomCode(input) {
		return "", transfer.WrapError("parse room code", transfer.ErrInvalidCode, input)
	}
	return input, nil
}

func extractRoomCodeFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", transfer.NewError("parse URL", err)
	}

	code := parsedURL.Query().Get("room")
	if !protocol.ValidRoomCode(code) {
		return "", fmt.Errorf("could not extract room code from URL: %s", urlStr)
	}
	return code, nil
}
