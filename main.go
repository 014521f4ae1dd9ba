package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/lib"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("Failed to load .env file:", err)
	}

	rootCmd, config := rapidpro.NewRootCmd()
	defer common.HandleUnexpectedPanic(config.BaseConfig)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	stop()
	common.PanicIfError(config.BaseConfig, err)
}
