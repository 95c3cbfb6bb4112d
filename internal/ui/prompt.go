package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"

	"textrefine/internal/models"
)

// Action is the user's choice once an optimized text is ready.
type Action int

const (
	ActionTranslate Action = iota
	ActionRefine
	ActionCancel
)

// statusOut receives status lines so stdout carries only results.
var statusOut io.Writer = os.Stderr

const (
	choiceTranslate = "Translate it"
	choiceRefine    = "Refine further"
	choiceCancel    = "Cancel"
)

// SelectOption asks the user to pick one of the proposed directions.
func SelectOption(options []models.AgentOption) (models.AgentOption, error) {
	labels := make([]string, len(options))
	for i, opt := range options {
		labels[i] = optionLabel(opt)
	}

	var index int
	prompt := &survey.Select{
		Message: "Choose a direction:",
		Options: labels,
		Description: func(_ string, i int) string {
			return options[i].Description
		},
	}
	if err := survey.AskOne(prompt, &index); err != nil {
		return models.AgentOption{}, err
	}
	return options[index], nil
}

// PromptForDirection asks for a free-text refine direction.
func PromptForDirection() (string, error) {
	var direction string
	prompt := &survey.Input{
		Message: "Describe the adjustment you want:",
	}
	if err := survey.AskOne(prompt, &direction, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return strings.TrimSpace(direction), nil
}

// PromptForText asks for the text to refine.
func PromptForText() (string, error) {
	var text string
	prompt := &survey.Multiline{
		Message: "Text to refine:",
	}
	if err := survey.AskOne(prompt, &text, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return text, nil
}

// ConfirmText shows the optimized text and asks what to do next.
func ConfirmText(text string) (Action, error) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Println("\nOptimized text:")
	fmt.Printf("%s\n\n", indent(text))

	var choice string
	prompt := &survey.Select{
		Message: "What would you like to do?",
		Options: []string{choiceTranslate, choiceRefine, choiceCancel},
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return ActionCancel, err
	}

	switch choice {
	case choiceTranslate:
		return ActionTranslate, nil
	case choiceRefine:
		return ActionRefine, nil
	default:
		return ActionCancel, nil
	}
}

// ShowAnalysis prints the model's explanation of the text.
func ShowAnalysis(analysis string) {
	if strings.TrimSpace(analysis) == "" {
		return
	}
	color.New(color.FgHiBlack).Println(analysis)
}

// ShowResult prints a labeled block of output text.
func ShowResult(label, text string) {
	color.New(color.FgGreen, color.Bold).Printf("\n%s:\n", label)
	fmt.Printf("%s\n", indent(text))
}

// ShowSuccess displays a success message on stderr.
func ShowSuccess(message string) {
	color.New(color.FgGreen, color.Bold).Fprintf(statusOut, "✓ %s\n", message)
}

// ShowError displays an error message on stderr.
func ShowError(message string) {
	color.New(color.FgRed, color.Bold).Fprintf(statusOut, "✗ %s\n", message)
}

// ShowInfo displays an info message on stderr.
func ShowInfo(message string) {
	color.New(color.FgBlue).Fprintln(statusOut, message)
}

func optionLabel(opt models.AgentOption) string {
	if opt.Label != "" {
		return opt.Label
	}
	return opt.ID
}

func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
