package tests

import (
	"bytes"
	"log"
	"os"
	"testing"

	. "github.com/trezcool/ibdp/apps/api/echo"
	"github.com/trezcool/ibdp/core/access"
	"github.com/trezcool/ibdp/core/auth"
	"github.com/trezcool/ibdp/core/session"
	"github.com/trezcool/ibdp/core/user"
	"github.com/trezcool/ibdp/services/logger"
	"github.com/trezcool/ibdp/storage/database/inmem"
	"github.com/trezcool/ibdp/tests"
)

var (
	db     *inmemdb.DB
	app    Server
	usrSvc *user.Service
	issuer *session.Issuer
	logs   bytes.Buffer
)

func TestMain(m *testing.M) {
	conf := testutil.Config()

	// set up DB & repos
	db = inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	logger := logsvc.NewRollbarLogger(log.New(&logs, "", 0), conf)
	usrSvc = user.NewService(usrRepo, conf)
	validate, translator := testutil.Validator()

	verifier, err := auth.NewVerifier(usrSvc, auth.AdminCredentialsFromConfig(conf), conf.BcryptCost)
	if err != nil {
		log.Fatalf("auth.NewVerifier(): %v", err)
	}
	keys := session.KeysFromConfig(conf)
	if issuer, err = session.NewIssuer(keys); err != nil {
		log.Fatalf("session.NewIssuer(): %v", err)
	}
	reader, err := session.NewReader(keys)
	if err != nil {
		log.Fatalf("session.NewReader(): %v", err)
	}

	// set up server
	app = NewServer(&Options{
		Conf:           conf,
		DisableReqLogs: true,
		Logger:         logger,
		UserSvc:        usrSvc,
		Verifier:       verifier,
		Issuer:         issuer,
		Reader:         reader,
		Authorizer:     access.NewAuthorizer(access.DefaultTable()),
		Validate:       validate,
		Translator:     translator,
	})

	os.Exit(m.Run())
}
