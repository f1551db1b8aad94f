package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	tutorRepo tutor.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run DB migrations (up, down, status, ...)")
	fmt.Println("  addtutor -name NAME -username USERNAME -email EMAIL [-admin] - update or create a tutor account")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset tutor's password")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addTutorCmd := flag.NewFlagSet("addtutor", flag.ExitOnError)
	addTutorName := addTutorCmd.String("name", "", "The tutor's full name.")
	addTutorUname := addTutorCmd.String("username", "", "The tutor's username.")
	addTutorEmail := addTutorCmd.String("email", "", "The tutor's email.")
	addTutorAdmin := addTutorCmd.Bool("admin", false, "Grant all admin roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The tutor's username or email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addtutor":
		if err := addTutorCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addTutorUname == "" || *addTutorEmail == "" {
			addTutorCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addTutorCmd.Usage()
			return errHelp
		}
		return cli.addTutor(*addTutorName, *addTutorUname, *addTutorEmail, pwd, *addTutorAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
