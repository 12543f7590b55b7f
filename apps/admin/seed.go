package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ibdp/core/user"
)

var errSeedNotDev = errors.New("seed is only available in DEV")

var seedAccounts = []user.NewUser{
	{FirstName: "IB", LastName: "Coordinator", Email: "coordinator@ib-dp-assistant.com", Password: "Coordinator123!@#", Role: user.RoleCoordinator},
	{FirstName: "John", LastName: "Teacher", Email: "teacher@ib-dp-assistant.com", Password: "Teacher123!@#", Role: user.RoleTeacher},
	{FirstName: "Jane", LastName: "Student", Email: "student@ib-dp-assistant.com", Password: "Student123!@#", Role: user.RoleStudent},
}

var seedAssessments = []user.Assessment{
	{Subject: "Mathematics HL", Title: "Paper 1", Score: 78, MaxScore: 100},
	{Subject: "Physics HL", Title: "Internal Assessment", Score: 19, MaxScore: 24},
	{Subject: "English A HL", Title: "Individual Oral", Score: 31, MaxScore: 40},
}

// seed creates the demo accounts that do not exist yet. The administrator is configured, never seeded.
func (cli *commandLine) seed() error {
	if !cli.conf.IsDev() {
		return errSeedNotDev
	}
	ctx := context.Background()

	for _, nu := range seedAccounts {
		if _, err := cli.usrSvc.GetByEmail(ctx, nu.Email); err == nil {
			fmt.Printf("%s already exists\n", nu.Email)
			continue
		} else if errors.Cause(err) != user.ErrNotFound {
			return err
		}

		if err := nu.Validate(cli.validate); err != nil {
			return cli.describe(err)
		}
		usr, _, err := cli.usrSvc.Register(ctx, nu)
		if err != nil {
			return errors.Wrapf(err, "seeding %s", nu.Email)
		}
		fmt.Printf("created %s %s\n", usr.Role, usr.Email)

		if usr.Role != user.RoleStudent {
			continue
		}
		for _, a := range seedAssessments {
			a.StudentID = usr.ID
			if _, err := cli.usrSvc.AddAssessment(ctx, a); err != nil {
				return errors.Wrapf(err, "seeding assessment %q", a.Title)
			}
		}
	}

	fmt.Println("\nDemo credentials:")
	fmt.Printf("  %s / %s\n", cli.conf.Admin.Email, "(configured admin password)")
	for _, nu := range seedAccounts {
		fmt.Printf("  %s / %s\n", nu.Email, nu.Password)
	}
	return nil
}
