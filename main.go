package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/sirupsen/logrus"

	"healthcare_assistant/config"
	"healthcare_assistant/constant"
	"healthcare_assistant/controller"
	"healthcare_assistant/pkg/checkpoint"
	"healthcare_assistant/pkg/clients/embedding"
	"healthcare_assistant/pkg/clients/llm_model"
	redisclient "healthcare_assistant/pkg/clients/redis"
	"healthcare_assistant/pkg/projectlog"
	"healthcare_assistant/pkg/vectorstore"
	"healthcare_assistant/repository/xormimplement"
	"healthcare_assistant/router"
	"healthcare_assistant/service/assistant"
	"healthcare_assistant/service/chat"
	"healthcare_assistant/service/profile"
)

func main() {
	defer func() {
		if serviceErr := recover(); serviceErr != nil {
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			log.Println("The service exits abnormally, error message:【", serviceErr, "】")
			log.Println("Stack info: ")
			fmt.Printf("==> %s\n", string(buf[:n]))
			os.Exit(1)
		}
	}()

	projectlog.Init()

	engine, teardown := buildServer()
	defer teardown()

	go startServer(engine)
	waitStop()
}

// buildServer 按依赖顺序组装整个服务，任何一步失败直接退出
func buildServer() (*http.Server, func()) {
	cfg := config.GetInstance()

	repositoryFactory, err := xormimplement.NewRepositoryFactory(&xormimplement.Config{
		Type:     cfg.GetString(config.BaseDbXormType),
		Host:     cfg.GetString(config.BaseDbXormHost),
		Port:     cfg.GetString(config.BaseDbXormPort),
		Username: cfg.GetString(config.BaseDbXormUsername),
		Password: cfg.GetString(config.BaseDbXormPassword),
		Name:     cfg.GetString(config.BaseDbXormName),
		ShowSQL:  cfg.GetBoolOrDefault(config.BaseDbXormShowsql, false),
	})
	if err != nil {
		logrus.Fatalf("Failed to init repository factory: %v", err)
	}

	redisCfg := &redisclient.RedisConfig{
		Host:     cfg.GetString(config.RedisClientHost),
		Password: cfg.GetString(config.RedisClientPassword),
		Db:       cfg.GetIntOrDefault(config.RedisClientDb, 0),
	}
	redisCfg.DefaultConfig()
	redisClient, err := redisclient.NewRedisSingleClient(redisCfg)
	if err != nil {
		logrus.Fatalf("Failed to connect redis: %v", err)
	}

	embeddingClient, err := embedding.NewClient(&embedding.Config{
		APIKey:    config.GetModelApiKey(),
		ModelName: cfg.GetString(config.EmbeddingConfigKeyModelName),
		BaseURL:   cfg.GetString(config.EmbeddingConfigKeyBaseURL),
	})
	if err != nil {
		logrus.Fatalf("Failed to init embedding client: %v", err)
	}

	symptomStore, err := vectorstore.New(
		cfg.GetStringOrDefault(config.VectorStoreIndexDir, "data/index"),
		cfg.GetStringOrDefault(config.VectorStoreDataFile, "data/symptoms_data.csv"),
		func(ctx context.Context, text string) ([]float32, error) {
			vec, err := embeddingClient.GetTextEmbedding(ctx, text)
			if err != nil {
				return nil, err
			}
			return embedding.ToFloat32(vec), nil
		},
	)
	if err != nil {
		logrus.Fatalf("Failed to init symptom vector store: %v", err)
	}

	llmClient := llm_model.NewClient(&llm_model.Config{
		Addr:        cfg.GetString(config.ClientChatModelAddr),
		V1Addr:      cfg.GetString(config.ClientChatModelAddr) + "/v1",
		Model:       cfg.GetString(config.ClientChatModelModel),
		Token:       config.GetModelApiKey(),
		Temperature: float32(cfg.GetFloat64OrDefault(config.ClientChatModelTemperature, 0.2)),
		MaxTokens:   cfg.GetIntOrDefault(config.ClientChatModelMaxTokens, 2048),
	})

	profileService := profile.NewService(repositoryFactory, llmClient)
	reasoner := assistant.NewLLMReasoner(llmClient)

	assistantService, err := assistant.NewService(
		reasoner,
		symptomStore,
		profileService,
		checkpoint.NewRedisCheckpointer(redisClient),
		assistant.Options{
			SummarizeThreshold: cfg.GetIntOrDefault(config.GraphSummarizeThreshold, constant.DefaultSummarizeThreshold),
			KeepRecentMessages: cfg.GetIntOrDefault(config.GraphKeepRecentMessages, constant.DefaultKeepRecentMessages),
			MaxStepsPerTurn:    cfg.GetIntOrDefault(config.GraphMaxStepsPerTurn, constant.DefaultMaxStepsPerTurn),
		},
	)
	if err != nil {
		logrus.Fatalf("Failed to build assistant graph: %v", err)
	}

	chatService := chat.NewService(
		repositoryFactory,
		profileService,
		reasoner,
		assistantService,
		cfg.GetIntOrDefault(config.GraphNamingThreshold, constant.DefaultNamingThreshold),
	)

	engine := router.New(
		controller.NewChatController(chatService, assistantService),
		controller.NewProfileController(profileService),
	)

	server := &http.Server{
		Addr:    cfg.GetStringOrDefault(config.AppHost, ":8080"),
		Handler: engine,
	}

	teardown := func() {
		redisclient.CloseRedisSingle(redisClient)
		if closer, ok := repositoryFactory.(*xormimplement.Factory); ok {
			if err := closer.Close(); err != nil {
				logrus.Warnf("Close database failed: %v", err)
			}
		}
	}
	return server, teardown
}

func startServer(server *http.Server) {
	logrus.Infof("Listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.Errorf("Failed to ListenAndServe at %v, err = %v", server.Addr, err)
		os.Exit(1)
	}
}

func waitStop() {
	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	sig := <-sc
	log.Printf("exit: signal=<%d>.\n", sig)
	switch sig {
	case syscall.SIGTERM:
		log.Println("exit: bye :-).")
		os.Exit(0)
	default:
		log.Println("exit: stop and wait.")
		os.Exit(1)
	}
}
