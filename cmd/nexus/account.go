// Small convenience tools for manipulating user accounts in the configured
// resource store.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nexus-vr/nexus/internal/core"
	"github.com/nexus-vr/nexus/internal/game"
	"github.com/nexus-vr/nexus/internal/storage"
	"github.com/nexus-vr/nexus/internal/storage/database"
	"github.com/nexus-vr/nexus/internal/storage/filesystem"
	"github.com/nexus-vr/nexus/internal/storage/redisstore"
)

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:  "account",
		Usage: "account management tools",
		Subcommands: []*cli.Command{
			{
				Name:      "set-password",
				Usage:     "lock an account with a password, or clear the lock with an empty one",
				ArgsUsage: "<user-id>",
				Action:    withAccount(setPassword),
			},
			{
				Name:      "ban",
				Usage:     "ban an account for a duration, e.g. 72h",
				ArgsUsage: "<user-id> <duration>",
				Action:    withAccount(banAccount),
			},
			{
				Name:      "unban",
				Usage:     "lift an account's ban",
				ArgsUsage: "<user-id>",
				Action:    withAccount(unbanAccount),
			},
			{
				Name:      "set-moderator",
				Usage:     "grant or revoke moderator standing",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "revoke", Usage: "revoke instead of grant"},
				},
				Action: withAccount(setModerator),
			},
		},
	}
}

// withAccount opens the store, resolves the user id argument, and hands the
// account to the action. Mutated accounts are written back on success.
func withAccount(action func(*cli.Context, *storage.AccountResource) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() < 1 {
			return errors.New("a user id is required, e.g. OVR-ORG-123412341234")
		}
		var userID game.XPlatformId
		if err := userID.UnmarshalText([]byte(c.Args().First())); err != nil {
			return err
		}

		store, err := openStorage(c.String("config"))
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		account, err := store.Accounts.Get(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no account exists for %s", userID)
			}
			return err
		}

		if err := action(c, account); err != nil {
			return err
		}
		return store.Accounts.Set(ctx, userID, account)
	}
}

func openStorage(configPath string) (*storage.Storage, error) {
	config := core.LoadConfig(configPath)
	if err := os.Chdir(filepath.Dir(configPath)); err != nil {
		return nil, err
	}

	switch config.Storage.Backend {
	case "", "filesystem":
		return filesystem.NewStorage(config.Storage.DatabaseDir, false)
	case "redis":
		return redisstore.NewStorage(context.Background(), config.Storage.RedisURL)
	case "database":
		return database.NewStorage(config.Storage.Driver, config.Storage.DSN, false)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", config.Storage.Backend)
	}
}

func setPassword(_ *cli.Context, account *storage.AccountResource) error {
	password := scanInput("Password (empty clears the lock)")
	if err := account.SetCredentials(password); err != nil {
		return err
	}
	if password == "" {
		fmt.Printf("cleared the account lock for %s\n", account.ID)
	} else {
		fmt.Printf("locked account %s\n", account.ID)
	}
	return nil
}

func banAccount(c *cli.Context, account *storage.AccountResource) error {
	if c.NArg() < 2 {
		return errors.New("a ban duration is required, e.g. 72h")
	}
	duration, err := time.ParseDuration(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("parsing ban duration: %w", err)
	}

	until := time.Now().Add(duration).UTC()
	account.BannedUntil = &until
	fmt.Printf("banned %s until %s\n", account.ID, until.Format(time.RFC3339))
	return nil
}

func unbanAccount(_ *cli.Context, account *storage.AccountResource) error {
	account.BannedUntil = nil
	fmt.Printf("unbanned %s\n", account.ID)
	return nil
}

func setModerator(c *cli.Context, account *storage.AccountResource) error {
	account.IsModerator = !c.Bool("revoke")
	fmt.Printf("moderator standing for %s: %t\n", account.ID, account.IsModerator)
	return nil
}

func scanInput(prompt string) string {
	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return scanner.Text()
}
