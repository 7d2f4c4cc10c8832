// Package printers holds the interactive terminal prompts.
package printers

import (
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

type IPrinters interface {
	Confirm(message string) bool
	Ask(label, defaultValue string, secret bool) (string, error)
}

type Printers struct{}

var defaultPrinters = Printers{}

// NewPrinters returns new printers struct
func NewPrinters() *Printers {
	return &Printers{}
}

func validateYesNo(input string) error {
	input = strings.ToLower(strings.TrimSpace(input))
	if input != "y" && input != "n" {
		return fmt.Errorf("wrong input %s, was expecting `y` or `n`", input)
	}
	return nil
}

func (p Printers) Confirm(message string) bool {
	prompt := promptui.Prompt{
		Label:    message + " Press (y/n)",
		Validate: validateYesNo,
	}

	result, err := prompt.Run()
	if err != nil {
		return false
	}
	return strings.ToLower(strings.TrimSpace(result)) == "y"
}

// Ask prompts for a single value. Secret values are masked while typed and
// are never pre-filled.
func (p Printers) Ask(label, defaultValue string, secret bool) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
	}
	if secret {
		prompt.Mask = '*'
	} else {
		prompt.Default = defaultValue
		prompt.AllowEdit = true
	}

	result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(result), nil
}

// Confirm prompt a confirmation message
//
// Return true if the user entered Y/y and false if entered n/N
func Confirm(message string) bool {
	return defaultPrinters.Confirm(message)
}

func Ask(label, defaultValue string, secret bool) (string, error) {
	return defaultPrinters.Ask(label, defaultValue, secret)
}
