package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"trakii-bot/handler"
	"trakii-bot/internal/integrations/openai"
	"trakii-bot/internal/integrations/paramstore"
	"trakii-bot/internal/integrations/traccar"
	"trakii-bot/internal/knowledge"
	"trakii-bot/internal/profile"
	"trakii-bot/internal/repository"
	"trakii-bot/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	auditTable := mustEnv("AUDIT_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	traccarURL := mustEnv("TRACCAR_URL")
	faqIndexPath := mustEnv("FAQ_INDEX_PATH")
	profilePath := os.Getenv("PROFILE_PATH")
	openaiModel := os.Getenv("OPENAI_MODEL")
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 1000)
	faqTopK := envInt("FAQ_TOP_K", 3)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	auditClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), auditTable)
	if err != nil {
		slog.Error("failed to create audit client", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, paramPrefix, openai.WithModel(openaiModel))
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}
	traccarClient, err := traccar.NewClient(traccarURL)
	if err != nil {
		slog.Error("failed to create Traccar client", "err", err)
		os.Exit(1)
	}

	// ---- Knowledge base ----
	faqIndex, err := knowledge.Open(faqIndexPath)
	if err != nil {
		slog.Error("failed to open FAQ index", "path", faqIndexPath, "err", err)
		os.Exit(1)
	}
	answerer, err := knowledge.NewAnswerer(faqIndex, openaiClient, faqTopK)
	if err != nil {
		slog.Error("failed to create FAQ answerer", "err", err)
		os.Exit(1)
	}

	// ---- Profile ----
	prof := profile.Default()
	if profilePath != "" {
		prof, err = profile.Load(profilePath)
		if err != nil {
			slog.Error("failed to load profile", "path", profilePath, "err", err)
			os.Exit(1)
		}
	}

	// ---- Dispatch engine ----
	triage, err := usecase.NewTriageService(openaiClient, traccarClient, answerer, auditClient, prof, maxMessageLen)
	if err != nil {
		slog.Error("failed to create triage service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(triage, ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
