package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/claybowl/taygency/internal/config"
	"github.com/claybowl/taygency/internal/secrets"
)

// NewSecretCommand returns the secret subcommand.
func NewSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "secret",
		Usage: "Manage age-encrypted credentials",
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "Create the age key (~/.taygency/.age-key) unless it exists",
				Action: runSecretKeygen,
			},
			{
				Name:      "encrypt",
				Usage:     "Print an ENC[age:...] value for config.jsonc",
				ArgsUsage: "[value]",
				Action:    runSecretEncrypt,
			},
			{
				Name:      "set",
				Usage:     "Encrypt a value and store it in ~/.taygency/.env",
				ArgsUsage: "<KEY> [value]",
				Action:    runSecretSet,
			},
		},
	}
}

func runSecretKeygen(_ context.Context, _ *cli.Command) error {
	k, created, err := secrets.GenerateKeyring(config.KeyPath())
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Created %s\n", config.KeyPath())
	} else {
		fmt.Printf("Key already exists at %s\n", config.KeyPath())
	}
	fmt.Printf("Public key: %s\n", k.Recipient())
	return nil
}

func runSecretEncrypt(_ context.Context, cmd *cli.Command) error {
	value, err := secretValue(cmd.Args().First(), "Value")
	if err != nil {
		return err
	}
	k, _, err := secrets.GenerateKeyring(config.KeyPath())
	if err != nil {
		return err
	}
	blob, err := k.Seal(value)
	if err != nil {
		return err
	}
	fmt.Println(blob)
	return nil
}

func runSecretSet(_ context.Context, cmd *cli.Command) error {
	key := cmd.Args().First()
	if key == "" {
		return fmt.Errorf("usage: taygency secret set <KEY> [value]")
	}
	value, err := secretValue(cmd.Args().Get(1), key)
	if err != nil {
		return err
	}
	k, _, err := secrets.GenerateKeyring(config.KeyPath())
	if err != nil {
		return err
	}
	blob, err := k.Seal(value)
	if err != nil {
		return err
	}
	if err := secrets.SetEntry(config.DotenvPath(), key, blob); err != nil {
		return err
	}
	fmt.Printf("Stored %s in %s\n", key, config.DotenvPath())
	return nil
}

// secretValue returns arg, or reads the value from stdin: without echo on
// a terminal, else the first line.
func secretValue(arg, prompt string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "%s: ", prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read value: %w", err)
		}
		return requireValue(string(b))
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read value: %w", err)
	}
	return requireValue(line)
}

func requireValue(v string) (string, error) {
	v = strings.TrimRight(v, "\r\n")
	if v == "" {
		return "", fmt.Errorf("empty value")
	}
	return v, nil
}
