package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tidewater-labs/callbridge/bridge/finalize"
	"github.com/tidewater-labs/callbridge/bridge/prompt"
	"github.com/tidewater-labs/callbridge/pkg/calendarx"
	configx "github.com/tidewater-labs/callbridge/pkg/config"
	_ "github.com/tidewater-labs/callbridge/pkg/logger/autoload"
	"github.com/tidewater-labs/callbridge/pkg/openaix"
	"github.com/tidewater-labs/callbridge/pkg/realtime"
	"github.com/tidewater-labs/callbridge/pkg/recall"
	"github.com/tidewater-labs/callbridge/pkg/retryx"
	"github.com/tidewater-labs/callbridge/pkg/telephony"
	"github.com/tidewater-labs/callbridge/server"
	"github.com/tidewater-labs/callbridge/store"
)

func main() {
	ctx := context.Background()

	serverCfg := configx.MustNew[server.Config]("SERVER")
	realtimeCfg := configx.MustNew[realtime.Config]("OPENAI_REALTIME")
	openaiCfg := configx.MustNew[openaix.Config]("OPENAI")
	twilioCfg := configx.MustNew[telephony.Config]("TWILIO")
	calendarCfg := configx.MustNew[calendarx.Config]("GOOGLE")
	storeCfg := configx.MustNew[store.Config]("DATABASE")
	retryPolicy := configx.MustNew[retryx.Policy]("RETRY")

	openaiClient := openaix.NewClient(*openaiCfg)
	directory := telephony.NewDirectory(*twilioCfg)

	calendarClient, err := calendarx.NewClient(ctx, *calendarCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("calendar client init failed")
	}

	storeClient := store.NewClient(*storeCfg, *retryPolicy)
	defer storeClient.Close()

	knowledge := recall.NewKnowledge(openaiClient, storeClient)
	memory := recall.NewMemory(openaiClient, storeClient)
	finalizer := finalize.New(openaiClient, storeClient, memory, log.Logger)

	srv := server.New(*serverCfg, server.Deps{
		Realtime:     *realtimeCfg,
		Instructions: prompt.System(),
		Directory:    directory,
		Calendar:     calendarClient,
		Store:        storeClient,
		Memory:       memory,
		Knowledge:    knowledge,
		Finalizer:    finalizer,
	})

	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
