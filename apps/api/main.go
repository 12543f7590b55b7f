package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/ibdp/apps/api/echo"
	"github.com/trezcool/ibdp/core"
	"github.com/trezcool/ibdp/core/access"
	"github.com/trezcool/ibdp/core/auth"
	"github.com/trezcool/ibdp/core/session"
	"github.com/trezcool/ibdp/core/user"
	"github.com/trezcool/ibdp/services/logger"
	"github.com/trezcool/ibdp/storage/database"
	"github.com/trezcool/ibdp/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf, err := core.NewConfig()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("Failed to close database", err)
		}
	}()

	// set up services
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), conf)

	verifier, err := auth.NewVerifier(usrSvc, auth.AdminCredentialsFromConfig(conf), conf.BcryptCost)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up verifier: %v", err), err)
	}
	keys := session.KeysFromConfig(conf)
	issuer, err := session.NewIssuer(keys)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session issuer: %v", err), err)
	}
	reader, err := session.NewReader(keys)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session reader: %v", err), err)
	}

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	// =========================================================================
	// Start API Service

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:       conf,
		Logger:     logger,
		Shutdown:   func() { shutdown <- syscall.SIGTERM },
		UserSvc:    usrSvc,
		Verifier:   verifier,
		Issuer:     issuer,
		Reader:     reader,
		Authorizer: access.NewAuthorizer(access.DefaultTable()),
		Validate:   validate,
		Translator: translator,
		Registry:   registry,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
