package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	userauth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/config"
	"github.com/goliatone/go-userauth/database"
	"github.com/goliatone/go-userauth/logging"
	"github.com/goliatone/go-userauth/seed"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

const usage = `usage: seed <command> [flags]

commands:
  add-user    create a single account
  seed-admin  create the initial admin account
  bulk-csv    import accounts from a csv file

environment: DATABASE_DRIVER, DATABASE_URL (read from .env when present)`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	_ = godotenv.Load()
	logger := logging.New(os.Stderr, "text", os.Getenv("LOG_LEVEL"))

	var err error
	switch os.Args[1] {
	case "add-user":
		err = addUser(os.Args[2:], logger)
	case "seed-admin":
		err = seedAdmin(os.Args[2:], logger)
	case "bulk-csv":
		err = bulkCSV(os.Args[2:], logger)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error(os.Args[1]+" failed", "error", err)
		os.Exit(1)
	}
}

func openSeeder(ctx context.Context, logger userauth.Logger) (*seed.Seeder, func(), error) {
	defaults := config.Defaults()
	driver := envOr("DATABASE_DRIVER", defaults.DatabaseDriver)
	dsn := envOr("DATABASE_URL", defaults.DatabaseURL)

	db, err := database.OpenAndMigrate(ctx, driver, dsn)
	if err != nil {
		return nil, nil, err
	}

	return seed.New(userauth.NewAccountRepository(db), nil).WithLogger(logger), func() { db.Close() }, nil
}

func addUser(args []string, logger *logging.SlogLogger) error {
	fs := flag.NewFlagSet("add-user", flag.ExitOnError)
	fullName := fs.String("full-name", "", "full name (required)")
	username := fs.String("username", "", "unique username (required)")
	email := fs.String("email", "", "unique email (required)")
	password := fs.String("password", "", "password, prompted when empty")
	role := fs.String("role", string(userauth.RoleUser), "USER, ADMIN or ANONYMOUS_USER")
	inactive := fs.Bool("inactive", false, "create the account inactive")
	unverified := fs.Bool("unverified", false, "leave the email unverified")
	useHashid := fs.Bool("hashid", false, "derive the account id from the email")
	fs.Parse(args)

	if *fullName == "" || *username == "" || *email == "" {
		fs.Usage()
		return fmt.Errorf("full-name, username and email are required")
	}

	parsedRole, ok := userauth.ParseRole(*role)
	if !ok {
		return fmt.Errorf("invalid role %q", *role)
	}

	if *password == "" {
		pw, err := promptPassword("Password")
		if err != nil {
			return err
		}
		*password = pw
	}

	ctx := context.Background()
	seeder, closeDB, err := openSeeder(ctx, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	account, err := seeder.AddUser(ctx, seed.User{
		FullName:  *fullName,
		Username:  *username,
		Email:     *email,
		Password:  *password,
		Role:      parsedRole,
		Active:    !*inactive,
		Verified:  !*unverified,
		UseHashid: *useHashid,
	})
	if err != nil {
		return err
	}

	logger.Info("user created", "id", account.ID, "email", account.Email, "role", account.Role)
	return nil
}

func seedAdmin(args []string, logger *logging.SlogLogger) error {
	fs := flag.NewFlagSet("seed-admin", flag.ExitOnError)
	fullName := fs.String("full-name", "Admin", "full name")
	username := fs.String("username", "admin", "username")
	email := fs.String("email", "admin@example.com", "email")
	password := fs.String("password", "", "password, prompted when empty")
	overwrite := fs.Bool("overwrite", false, "update password and flags when the admin exists")
	useHashid := fs.Bool("hashid", false, "derive the account id from the email")
	fs.Parse(args)

	ctx := context.Background()
	seeder, closeDB, err := openSeeder(ctx, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	exists, err := seeder.Exists(ctx, *email)
	if err != nil {
		return err
	}
	if exists && !*overwrite {
		logger.Info("admin already exists, use --overwrite to update", "email", *email)
		return nil
	}

	if *password == "" {
		pw, err := promptPassword("Admin password")
		if err != nil {
			return err
		}
		*password = pw
	}

	account, _, err := seeder.SeedAdmin(ctx, seed.User{
		FullName:  *fullName,
		Username:  *username,
		Email:     *email,
		Password:  *password,
		UseHashid: *useHashid,
	}, *overwrite)
	if err != nil {
		return err
	}

	if exists {
		logger.Info("admin updated", "email", account.Email)
	} else {
		logger.Info("admin created", "id", account.ID, "email", account.Email)
	}
	return nil
}

func bulkCSV(args []string, logger *logging.SlogLogger) error {
	fs := flag.NewFlagSet("bulk-csv", flag.ExitOnError)
	skipExisting := fs.Bool("skip-existing", true, "skip rows whose email or username exists")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: seed bulk-csv [--skip-existing=false] <file.csv>")
		fmt.Fprintln(fs.Output(), "columns: full_name,user_name,email,password,role,is_active")
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one csv path")
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := context.Background()
	seeder, closeDB, err := openSeeder(ctx, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	result, err := seeder.ImportCSV(ctx, f, *skipExisting)
	if err != nil {
		return err
	}

	logger.Info("bulk import done", "created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return nil
}

func promptPassword(label string) (string, error) {
	first, err := readSecret(label + ": ")
	if err != nil {
		return "", err
	}
	second, err := readSecret("Repeat " + strings.ToLower(label) + ": ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	if first == "" {
		return "", fmt.Errorf("password is required")
	}
	return first, nil
}

// readSecret reads without echo from a terminal, or a plain line when
// stdin is piped.
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(raw), err
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var stdin = bufio.NewReader(os.Stdin)

func envOr(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}
