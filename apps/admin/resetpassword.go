package main

import (
	"context"

	"github.com/trezcool/ibdp/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	sp := user.SetPassword{Password: pwd}
	if err := sp.Validate(cli.validate); err != nil {
		return cli.describe(err)
	}
	return cli.usrSvc.ResetPassword(context.Background(), email, sp)
}
