package main

import (
	"time"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	tut, err := cli.tutorRepo.GetTutorByUsernameOrEmail(uname)
	if err != nil {
		return err
	}
	if err := tut.SetPassword(pwd); err != nil {
		return err
	}
	tut.UpdatedAt = time.Now().UTC()
	_, err = cli.tutorRepo.UpdateTutor(tut, nil)
	return err
}
