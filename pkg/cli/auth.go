package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mchmarny/loanscore/pkg/config"
	"github.com/urfave/cli/v3"
	"github.com/zalando/go-keyring"
)

const (
	tokenFileName  = "api_token"
	keyringService = config.AppName
	keyringUser    = "api_token"

	tokenFlag = "token"
	clearFlag = "clear"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Create or remove the bearer token required by the HTTP API",
		UsageText: `loanscore auth                 # generate and store a token
   loanscore auth --token s3cr3t  # store a chosen token
   loanscore auth --clear         # remove the token`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  tokenFlag,
				Usage: "API token to store (default: generate one)",
			},
			&cli.BoolFlag{
				Name:  clearFlag,
				Usage: "Remove the stored API token, disabling API auth",
			},
		},
		Action: cmdAuth,
	}
}

func cmdAuth(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	if cmd.Bool(clearFlag) {
		if err := deleteAPIToken(cfg.HomeDir); err != nil {
			return fmt.Errorf("removing token: %w", err)
		}
		fmt.Fprintln(cfg.Out, "Token removed, API auth disabled")
		return nil
	}

	token := strings.TrimSpace(cmd.String(tokenFlag))
	if token == "" {
		token = uuid.NewString()
	}

	if err := saveAPIToken(cfg.HomeDir, token); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}

	fmt.Fprintf(cfg.Out, "API token: %s\n", token)
	fmt.Fprintln(cfg.Out, "Send it as: Authorization: Bearer <token>")
	return nil
}

func saveAPIToken(dir, token string) error {
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return os.WriteFile(filepath.Join(dir, tokenFileName), []byte(token), 0600)
	}

	// drop any file left from a keychain-less run
	os.Remove(filepath.Join(dir, tokenFileName))
	return nil
}

// getAPIToken returns the stored token, or an empty string when none is set.
func getAPIToken(dir string) (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain unavailable, reading token file", "error", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, tokenFileName))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func deleteAPIToken(dir string) error {
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("keychain unavailable", "error", err)
	}
	if err := os.Remove(filepath.Join(dir, tokenFileName)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
