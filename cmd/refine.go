package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"textrefine/internal/agent"
	"textrefine/internal/models"
	"textrefine/internal/session"
	"textrefine/internal/ui"
)

const refineUsage = `Usage:
  textrefine refine [--config <path>] [--profile <name>] [--copy] [text...]

Reads the text from the arguments, or from stdin when it is not a terminal.
On a terminal the command walks through options and offers to translate the
result; otherwise it prints the refined text once.

Flags:
  --config  string  Path to YAML configuration file (defaults apply when omitted)
  --profile string  Profile to use instead of the configured default
  --copy            Copy the final text to the clipboard`

type textFlags struct {
	cfgPath string
	profile string
	copy    bool
}

func parseTextFlags(name, usageText string, args []string) (textFlags, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, usageText)
	}

	var f textFlags
	fs.StringVar(&f.cfgPath, "config", "", "path to configuration file")
	fs.StringVar(&f.profile, "profile", "", "profile name")
	fs.BoolVar(&f.copy, "copy", false, "copy the result to the clipboard")

	if err := fs.Parse(args); err != nil {
		return textFlags{}, nil, err
	}
	return f, fs.Args(), nil
}

func refine(ctx context.Context, args []string) error {
	flags, rest, err := parseTextFlags("refine", refineUsage, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse refine flags: %w", err)
	}

	cfg, err := loadConfig(flags.cfgPath)
	if err != nil {
		return err
	}
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	text, err := readText(rest, os.Stdin)
	if err != nil {
		return err
	}

	if !isInteractive() {
		if text == "" {
			return errNoText
		}
		result, err := a.router.Refine(ctx, flags.profile, []models.ChatMessage{{Role: models.RoleUser, Content: text}}, "")
		if err != nil {
			return err
		}
		if result.Response.Analysis != "" {
			fmt.Fprintln(os.Stderr, result.Response.Analysis)
		}
		fmt.Println(result.Decision.Text)
		if flags.copy {
			copyToClipboard(result.Decision.Text)
		}
		return nil
	}

	if text == "" {
		if text, err = ui.PromptForText(); err != nil {
			return err
		}
	}

	final, err := runSession(ctx, session.New(a.router, flags.profile), text)
	if err != nil || final == "" {
		return err
	}
	if flags.copy {
		copyToClipboard(final)
	}
	return nil
}

// runSession drives the interactive loop and returns the translation, or ""
// when the user cancels.
func runSession(ctx context.Context, s *session.Session, text string) (string, error) {
	out, err := s.Submit(ctx, text)
	for {
		if errors.Is(err, session.ErrCustomDirection) {
			direction, promptErr := ui.PromptForDirection()
			if promptErr != nil {
				return "", promptErr
			}
			out, err = s.Direct(ctx, direction)
			continue
		}
		if err != nil {
			return "", err
		}

		ui.ShowAnalysis(out.Response.Analysis)

		switch out.Stage {
		case session.StageResult:
			if out.Decision.Stage == agent.StageNoChange {
				reason := out.Decision.Reason
				if reason == "" {
					reason = session.DefaultNoChangeReason
				}
				ui.ShowInfo("No changes needed: " + reason)
			}
			ui.ShowResult("Translation", out.Translation)
			return out.Translation, nil

		case session.StageRefining:
			out, err = chooseDirection(ctx, s)

		default:
			action, promptErr := ui.ConfirmText(s.Text())
			if promptErr != nil {
				return "", promptErr
			}
			switch action {
			case ui.ActionTranslate:
				out, err = s.Confirm(ctx)
			case ui.ActionRefine:
				out, err = chooseDirection(ctx, s)
			default:
				ui.ShowInfo("Cancelled")
				return "", nil
			}
		}
	}
}

func chooseDirection(ctx context.Context, s *session.Session) (session.Outcome, error) {
	options := s.Options()
	if len(options) == 0 {
		return session.Outcome{}, session.ErrCustomDirection
	}
	option, err := ui.SelectOption(options)
	if err != nil {
		return session.Outcome{}, err
	}
	return s.Choose(ctx, option)
}
