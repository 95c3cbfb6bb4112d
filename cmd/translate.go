package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
)

const translateUsage = `Usage:
  textrefine translate [--config <path>] [--profile <name>] [--copy] [text...]

Reads the text from the arguments, or from stdin when it is not a terminal,
and prints the translation into chat.translate_language.

Flags:
  --config  string  Path to YAML configuration file (defaults apply when omitted)
  --profile string  Profile to use instead of the configured default
  --copy            Copy the translation to the clipboard`

func translate(ctx context.Context, args []string) error {
	flags, rest, err := parseTextFlags("translate", translateUsage, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse translate flags: %w", err)
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
	if text == "" {
		return errNoText
	}

	translated, err := a.router.Translate(ctx, flags.profile, text)
	if err != nil {
		return err
	}
	fmt.Println(translated)
	if flags.copy {
		copyToClipboard(translated)
	}
	return nil
}
