package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/watch-api/internal/models"
	"github.com/noah-isme/watch-api/migrations"
)

var (
	gooseRunFunc = runGoose // mockable

	errHelp = errors.New("help provided")
)

type userCreator interface {
	Create(ctx context.Context, user *models.User) error
}

type commandLine struct {
	db     *sql.DB
	users  userCreator
	logger *zap.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                      - run a goose command (up, down, status, version, up-to, down-to, redo, reset)")
	fmt.Println("  adduser -email EMAIL -name NAME [-role R]   - create an account, the password is prompted next")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "Login email of the new account.")
	addUserName := addUserCmd.String("name", "", "Full name shown in audit trails.")
	addUserRole := addUserCmd.String("role", string(models.RoleAdmin), "ADMIN (discipline officer) or COMMITTEE.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserName, *addUserRole, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(context.Background(), args[0], cli.db, cli.logger, args[1:]...)
}

func runGoose(ctx context.Context, command string, db *sql.DB, logger *zap.Logger, args ...string) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{logger.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.RunContext(ctx, command, db, ".", args...)
}

type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Infof(format, v...)
}
