package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// Confirm asks a yes/no question on the terminal.
func Confirm(title string) bool {
	var confirm bool

	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&confirm).
		Run()
	if err != nil {
		return false
	}

	return confirm
}

// ConfirmOffer asks whether to accept an incoming file offer.
func ConfirmOffer(peerName, fileName string, size int64) bool {
	title := fmt.Sprintf("%s %s wants to send %q (%s). Accept?",
		IconReceive, peerName, fileName, FormatBytes(size))
	return Confirm(title)
}
