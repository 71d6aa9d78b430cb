package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/internal/repository"
)

var readPasswordFunc = term.ReadPassword // mockable

// readPassword prefers ADMIN_PASSWORD so the first officer can be created from provisioning scripts.
func readPassword() (string, error) {
	if pwd := os.Getenv("ADMIN_PASSWORD"); pwd != "" {
		return pwd, nil
	}
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) addUser(email, name, role, pwd string) error {
	userRole := models.UserRole(strings.ToUpper(strings.TrimSpace(role)))
	if userRole != models.RoleAdmin && userRole != models.RoleCommittee {
		return fmt.Errorf("role must be %s or %s (got %q)", models.RoleAdmin, models.RoleCommittee, role)
	}
	if len(pwd) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(name),
		Role:         userRole,
		Active:       true,
	}
	if err := cli.users.Create(context.Background(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			cli.logger.Sugar().Infow("account already exists", "email", user.Email)
			return nil
		}
		return err
	}
	cli.logger.Sugar().Infow("account created", "email", user.Email, "role", user.Role)
	return nil
}
