package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/good-yellow-bee/slate/internal/api/auth"
	"github.com/good-yellow-bee/slate/internal/models"
	"github.com/good-yellow-bee/slate/internal/storage"
)

var (
	userEmail string
	userName  string
)

var stdinReader = bufio.NewReader(os.Stdin)

// errEmailTaken is returned when creating an account for a registered email.
var errEmailTaken = errors.New("email already registered")

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing Slate accounts.

These commands operate directly on the database file and are intended
for administrators who need to manage accounts outside the web interface.

Examples:
  # List all users
  slatectl user list

  # Create a user
  slatectl user create --email dee@example.com --name "Dee"

  # Change a user's password
  slatectl user passwd --email dee@example.com`,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long: `List all accounts in the database.

Displays id, email, name and creation date. Passwords are never displayed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.Users().List(context.Background())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		renderUsers(cmd.OutOrStdout(), users)
		return nil
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new account in the database.

The password is prompted interactively so it never lands in shell
history. It must be 8 to 72 bytes long.

Example:
  slatectl user create --email dee@example.com --name "Dee"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptNewPassword()
		if err != nil {
			return err
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		user, err := createUser(context.Background(), store.Users(), userEmail, userName, password)
		if err != nil {
			return err
		}

		fmt.Printf("\nUser created successfully.\n")
		fmt.Printf("  ID:    %s\n", user.ID)
		fmt.Printf("  Email: %s\n", user.Email)
		if user.Name != "" {
			fmt.Printf("  Name:  %s\n", user.Name)
		}
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change a user's password",
	Long: `Change the password of an existing account.

Sessions already issued stay valid until they expire.

Example:
  slatectl user passwd --email dee@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		user, err := store.Users().GetByEmail(ctx, models.NormalizeEmail(userEmail))
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user '%s' not found", userEmail)
		}

		password, err := promptNewPassword()
		if err != nil {
			return err
		}
		if err := setPassword(ctx, store.Users(), user, password); err != nil {
			return err
		}

		fmt.Printf("\nPassword changed successfully for '%s'.\n", user.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userPasswdCmd)

	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email for the new user (required)")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	userCreateCmd.MarkFlagRequired("email")

	userPasswdCmd.Flags().StringVar(&userEmail, "email", "", "email of the user to update (required)")
	userPasswdCmd.MarkFlagRequired("email")
}

// createUser validates and stores a new account.
func createUser(ctx context.Context, users storage.UserRepository, email, name, password string) (*models.User, error) {
	req := auth.RegisterRequest{
		Email:    models.NormalizeEmail(email),
		Password: password,
		Name:     strings.TrimSpace(name),
	}
	if err := models.ValidateStruct(&req); err != nil {
		return nil, fmt.Errorf("invalid user: %w", err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("invalid password: %w", err)
	}

	existing, err := users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", errEmailTaken, req.Email)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser(req.Email, req.Name)
	user.ID = uuid.NewString()
	user.PasswordHash = hash
	if err := users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func setPassword(ctx context.Context, users storage.UserRepository, user *models.User, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	if err := users.Update(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func renderUsers(w io.Writer, users []*models.User) {
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "EMAIL", "NAME", "CREATED"})
	for _, u := range users {
		tw.AppendRow(table.Row{
			u.ID,
			u.Email,
			u.Name,
			u.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	fmt.Fprintf(w, "%s\n\nTotal: %d user(s)\n", tw.Render(), len(users))
}

func promptNewPassword() (string, error) {
	password, err := promptPassword("Enter password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return "", fmt.Errorf("invalid password: %w", err)
	}

	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// Piped input: one line per prompt from a shared reader.
	password, err := stdinReader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && password != "") {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
