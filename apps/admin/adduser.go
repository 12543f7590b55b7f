package main

import (
	"context"
	"fmt"

	"github.com/trezcool/ibdp/core/user"
)

// addUser registers a user through the same path as the API: ADMIN is refused, the password policy applies.
func (cli *commandLine) addUser(nu user.NewUser) error {
	if err := nu.Validate(cli.validate); err != nil {
		return cli.describe(err)
	}
	usr, profile, err := cli.usrSvc.Register(context.Background(), nu)
	if err != nil {
		return err
	}
	if sp, ok := profile.(user.StudentProfile); ok {
		fmt.Printf("created %s %s (%s, student number %s)\n", usr.Role, usr.Email, usr.ID, sp.StudentNumber)
		return nil
	}
	fmt.Printf("created %s %s (%s)\n", usr.Role, usr.Email, usr.ID)
	return nil
}
