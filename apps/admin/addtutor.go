package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/Shukurulla/dogerek-tutor/core"
	"github.com/Shukurulla/dogerek-tutor/core/tutor"
)

// addTutor updates or creates a tutor account.
func (cli *commandLine) addTutor(name, uname, email, pwd string, isAdmin bool) error {
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	tut, err := cli.tutorRepo.GetTutorByUsernameOrEmail(uname)
	if err != nil {
		if err != tutor.ErrNotFound {
			return err
		}
		if tut, err = cli.tutorRepo.GetTutorByUsernameOrEmail(email); err != nil {
			if err != tutor.ErrNotFound {
				return err
			}
			now := time.Now().UTC()
			tut = tutor.Tutor{
				ID:        uuid.NewString(),
				Username:  uname,
				Email:     email,
				Roles:     []string{tutor.RoleTutor},
				CreatedAt: now,
			}
			if err = tut.SetPassword(pwd); err != nil {
				return err
			}
			tut.Name = core.CleanString(name)
			tut.IsActive = true
			tut.UpdatedAt = now
			if isAdmin {
				tut.Roles = tutor.AllRoles
			}
			_, err = cli.tutorRepo.CreateTutor(tut)
			return err
		}
	}

	if name != "" {
		tut.Name = core.CleanString(name)
	}
	tut.Username = uname
	tut.Email = email
	if isAdmin {
		tut.Roles = tutor.AllRoles
	}
	if err = tut.SetPassword(pwd); err != nil {
		return err
	}
	tut.UpdatedAt = time.Now().UTC()
	isActive := true
	_, err = cli.tutorRepo.UpdateTutor(tut, &isActive)
	return err
}
