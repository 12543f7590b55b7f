package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ibdp/core/user"
	"github.com/trezcool/ibdp/storage/database/inmem"
	"github.com/trezcool/ibdp/tests"
)

var usrSvc *user.Service

func setup(t *testing.T) *commandLine {
	conf := testutil.Config()
	usrSvc = user.NewService(inmemdb.NewUserRepository(inmemdb.NewDB()), conf)
	validate, translator := testutil.Validator()

	// start CLI
	return &commandLine{
		conf:       conf,
		usrSvc:     usrSvc,
		validate:   validate,
		translator: translator,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	args := func(email, role string) []string {
		return []string{"adduser", "-email", email, "-first", "Jane", "-last", "Doe", "-role", role}
	}

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: args("jane@test.com", "STUDENT"), wantErr: errHelp},
		{name: "admin", args: args("root@test.com", "ADMIN"), extra: testutil.Password, wantErrStr: "Admin registration is not allowed"},
		{name: "missing name", args: []string{"adduser", "-email", "x@test.com", "-role", "TEACHER"}, extra: testutil.Password, wantErrStr: "All fields are required"},
		{name: "weak password", args: args("jane@test.com", "STUDENT"), extra: "password", wantErrStr: "password: Password must contain at least one uppercase letter"},
		{name: "bad role", args: args("jane@test.com", "PARENT"), extra: testutil.Password, wantErrStr: "role: Invalid role"},
		{name: "student", args: args("jane@test.com", "student"), extra: testutil.Password},
		{name: "duplicate", args: args("Jane@Test.com", "TEACHER"), extra: testutil.Password, wantErrStr: "User with this email already exists"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := usrSvc.GetByEmail(ctx, "jane@test.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	profile, err := usrSvc.GetProfile(ctx, usr)
	require.NoError(t, err)
	assert.IsType(t, user.StudentProfile{}, profile)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr, _ := testutil.CreateUser(t, usrSvc, "Jane", "Doe", "jane@test.com", user.RoleTeacher)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.com"}, wantErr: errHelp},
		{name: "weak password", args: []string{"resetpassword", "-email", usr.Email}, extra: "short", wantErrStr: "password: Password must be at least 8 characters long"},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.com"}, extra: "N3wPassword", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: "N3wPassword"},
		{name: "reset (email case)", args: []string{"resetpassword", "-email", "JANE@test.com"}, extra: "An0therPassword"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			before, err := usrSvc.GetByID(ctx, usr.ID)
			require.NoError(t, err)

			err = cli.run(args)
			tt.check(t, err)

			after, err := usrSvc.GetByID(ctx, usr.ID)
			require.NoError(t, err)
			changed := !bytes.Equal(before.PasswordHash, after.PasswordHash)
			assert.Equal(t, tt.wantErr == nil && tt.wantErrStr == "", changed)
			if changed {
				assert.NoError(t, after.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	require.NoError(t, cli.run([]string{"admin", "seed"}))
	require.NoError(t, cli.run([]string{"admin", "seed"})) // idempotent

	users, err := usrSvc.Query(ctx, user.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, users, len(seedAccounts))

	students, err := usrSvc.QueryStudents(ctx, user.StudentFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, len(seedAssessments), students[0].AssessmentCount)

	cli.conf.Env = "PROD"
	assert.Equal(t, errSeedNotDev, cli.run([]string{"admin", "seed"}))
}
