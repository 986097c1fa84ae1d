package main

import (
	"flag"

	"windcave/config"
	"windcave/internal"
)

func main() {

	logger := internal.NewLogger("internal", false, nil)

	configPath := flag.String("conf", "config.yml", "path to config file")
	flag.Parse()

	logger.Info("using config file: " + *configPath)
	conf, err := config.GetConfig(*configPath)
	if err != nil {
		logger.Error("boot", err)
		return
	}

	mongo, err := internal.NewMongoClient(conf)
	if err != nil {
		logger.Error("mongo client", err)
		return
	}
	if mongo == nil {
		logger.Error("boot", internal.ErrDatabaseRequired)
		return
	}
	logger.Info("mongo client initialized")

	gateway := internal.NewGateway(conf)
	gateway.SetLogger(internal.NewLogger("gateway", conf.IsDebug, mongo))

	credentials := internal.NewConfigCredentials(conf)
	tokens := internal.NewTokenStore(mongo)

	payloads := internal.NewPayloadBuilder(conf, credentials, tokens)
	payloads.SetLogger(internal.NewLogger("payload", conf.IsDebug, mongo))

	payments := internal.NewReconciler(conf, gateway, credentials, payloads, tokens)
	payments.SetDatabase(mongo)
	payments.SetStateMachine(mongo)
	payments.SetLogger(internal.NewLogger("payments", conf.IsDebug, mongo))

	subscriber := internal.NewStatusSubscriber(payments)
	subscriber.SetLogger(internal.NewLogger("status", conf.IsDebug, mongo))
	mongo.SetTransitionListener(subscriber.OnTransition)

	server := internal.NewServer(conf)
	server.SetLogger(internal.NewLogger("server", conf.IsDebug, mongo))
	server.SetPaymentsService(payments)
	server.SetGateway(gateway)
	server.SetCredentials(credentials)
	server.SetStateMachine(mongo)
	server.SetDatabase(mongo)

	err = server.Start()
	if err != nil {
		logger.Error("server start", err)
		return
	}

}
