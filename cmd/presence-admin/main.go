// ABOUTME: Admin CLI for the presence catalog: users, tokens, seeds, spaces
// ABOUTME: Talks straight to the SQLite catalog; no running gateway required

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/gridhouse/presence-gateway/internal/auth"
	"github.com/gridhouse/presence-gateway/internal/catalog"
)

const banner = `
 _ __  _ __ ___  ___  ___ _ __   ___ ___    __ _  __| |_ __ ___ (_)_ __
| '_ \| '__/ _ \/ __|/ _ \ '_ \ / __/ _ \  / _' |/ _' | '_ ' _ \| | '_ \
| |_) | | |  __/\__ \  __/ | | | (_|  __/ | (_| | (_| | | | | | | | | | |
| .__/|_|  \___||___/\___|_| |_|\___\___|  \__,_|\__,_|_| |_| |_|_|_| |_|
|_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "user":
		err = cmdUser(ctx, args)
	case "token":
		err = cmdToken(ctx, args)
	case "seed":
		err = cmdSeed(ctx, args)
	case "spaces":
		err = cmdSpaces(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	color.Cyan(banner)
	fmt.Println("Usage: presence-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  user add --username NAME --password PASS [--role ROLE]")
	fmt.Println("                               Create a user in the catalog")
	fmt.Println("  token --user-id ID [--ttl DURATION]")
	fmt.Println("                               Sign a join token for a user")
	fmt.Println("  seed MANIFEST.toml           Load elements and spaces from a manifest")
	fmt.Println("  spaces                       List spaces in the catalog")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  PRESENCE_DB          Catalog database path (default: ~/.local/share/presence/catalog.db)")
	fmt.Println("  PRESENCE_JWT_SECRET  Secret for token signing (required for token)")
}

// getDBPath resolves the catalog path the same way the server does.
func getDBPath() string {
	if envPath := os.Getenv("PRESENCE_DB"); envPath != "" {
		return envPath
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "catalog.db" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "presence", "catalog.db")
}

func openStore() (*catalog.Store, error) {
	return catalog.NewStore(getDBPath())
}

func cmdUser(ctx context.Context, args []string) error {
	if len(args) < 1 || args[0] != "add" {
		return fmt.Errorf("usage: presence-admin user add --username NAME --password PASS [--role ROLE]")
	}

	fs := flag.NewFlagSet("user add", flag.ExitOnError)
	username := fs.String("username", "", "username for the new user")
	password := fs.String("password", "", "password for the new user")
	role := fs.String("role", "User", "role: User or Admin")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *username == "" || *password == "" {
		return fmt.Errorf("--username and --password are required")
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	user, err := store.CreateUser(ctx, *username, *password, *role)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	color.Green("✓ user created")
	fmt.Printf("  id:       %s\n", user.ID)
	fmt.Printf("  username: %s\n", user.Username)
	fmt.Printf("  role:     %s\n", user.Role)
	return nil
}

func cmdToken(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user-id", "", "userId claim for the token")
	role := fs.String("role", "User", "role claim for the token")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return fmt.Errorf("--user-id is required")
	}

	secret := os.Getenv("PRESENCE_JWT_SECRET")
	if secret == "" {
		return fmt.Errorf("PRESENCE_JWT_SECRET is not set")
	}

	verifier := auth.NewJWTVerifier([]byte(secret))
	token, err := verifier.Generate(*userID, *role, *ttl)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func cmdSeed(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: presence-admin seed MANIFEST.toml")
	}

	manifest, err := catalog.LoadManifest(args[0])
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	if err := store.ApplySeed(ctx, manifest); err != nil {
		return fmt.Errorf("applying manifest: %w", err)
	}

	color.Green("✓ seeded %d elements, %d spaces", len(manifest.Elements), len(manifest.Spaces))
	return nil
}

func cmdSpaces(ctx context.Context) error {
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer store.Close()

	spaces, err := store.ListSpaces(ctx)
	if err != nil {
		return fmt.Errorf("listing spaces: %w", err)
	}

	if len(spaces) == 0 {
		fmt.Println("no spaces")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDIMENSIONS")
	for _, s := range spaces {
		fmt.Fprintf(w, "%s\t%s\t%dx%d\n", s.ID, s.Name, s.Width, s.Height)
	}
	return w.Flush()
}
