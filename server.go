package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	common "github.com/ethereum/go-ethereum/common"
	redis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/reuseport"

	"github.com/pdexchain/plasmadex/childchain"
	"github.com/pdexchain/plasmadex/config"
	"github.com/pdexchain/plasmadex/handlers"
	"github.com/pdexchain/plasmadex/policy"
	"github.com/pdexchain/plasmadex/utxostore"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.ParseConfigs()
	if err != nil {
		log.WithError(err).Fatal("could not parse configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	store, err := utxostore.NewBadgerStore(cfg.Storage.DataDir)
	if err != nil {
		log.WithError(err).Fatal("could not open the utxo store")
	}
	defer store.Close()

	ctx := context.Background()
	var counter childchain.Counter
	if cfg.Redis.RedisEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.RedisHost + ":" + strconv.Itoa(cfg.Redis.RedisPort),
			Password: cfg.Redis.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		counter = childchain.NewRedisCounter(redisClient)
	} else {
		counter = childchain.NewMemoryCounter(1)
	}

	chain, err := childchain.New(ctx, store, store, childchain.NewLoggingRootChain(log), counter, log)
	if err != nil {
		log.WithError(err).Fatal("could not start the child chain")
	}

	acceptancePolicy, err := policy.FromEnv()
	if err != nil {
		log.WithError(err).Fatal("could not parse acceptance policy")
	}

	signingKey := common.FromHex(cfg.Signature.BlockSigningKey)
	applyTransactionHandler := handlers.NewApplyTransactionHandler(chain, acceptancePolicy)
	applyDepositHandler := handlers.NewApplyDepositHandler(chain)
	submitBlockHandler := handlers.NewSubmitBlockHandler(chain, signingKey)
	getTransactionHandler := handlers.NewGetTransactionHandler(chain)
	getCurrentBlockHandler := handlers.NewGetCurrentBlockHandler(chain)
	getCurrentBlockNumHandler := handlers.NewGetCurrentBlockNumHandler(chain)
	getBlockHandler := handlers.NewGetBlockHandler(chain)
	getBalancesHandler := handlers.NewGetBalancesHandler(chain)
	getOpenOrdersHandler := handlers.NewGetOpenOrdersHandler(chain)
	listUTXOsHandler := handlers.NewListUTXOsHandler(chain)

	m := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/apply_transaction":
			applyTransactionHandler.HandlerFunc(ctx)
		case "/apply_deposit":
			applyDepositHandler.HandlerFunc(ctx)
		case "/submit_block":
			submitBlockHandler.HandlerFunc(ctx)
		case "/get_transaction":
			getTransactionHandler.HandlerFunc(ctx)
		case "/get_current_block":
			getCurrentBlockHandler.HandlerFunc(ctx)
		case "/get_current_block_num":
			getCurrentBlockNumHandler.HandlerFunc(ctx)
		case "/get_block":
			getBlockHandler.HandlerFunc(ctx)
		case "/get_balances":
			getBalancesHandler.HandlerFunc(ctx)
		case "/get_open_orders":
			getOpenOrdersHandler.HandlerFunc(ctx)
		case "/list_utxos":
			listUTXOsHandler.HandlerFunc(ctx)
		default:
			ctx.Error("Not found", fasthttp.StatusNotFound)
		}
	}

	server := fasthttp.Server{
		Name:               "PlasmaDEX",
		Concurrency:        cfg.HTTP.HTTPConcurrency,
		MaxConnsPerIP:      cfg.HTTP.MaxConnectionsPerIP,
		MaxRequestBodySize: cfg.HTTP.MaxBodySize,
		WriteTimeout:       time.Second * 15,
		ReadTimeout:        time.Second * 15,
		Handler:            m,
	}

	var listener net.Listener
	go func() {
		listener, err = reuseport.Listen("tcp4", "0.0.0.0"+":"+strconv.Itoa(cfg.HTTP.Port))
		if err != nil {
			log.WithError(err).Fatal("can not bind")
		}
		log.WithField("port", cfg.HTTP.Port).Info("child chain RPC listening")
		if err = server.Serve(listener); err != nil {
			log.WithError(err).Error("server stopped")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	if listener != nil {
		listener.Close()
	}
	log.Info("shutting down")
}
