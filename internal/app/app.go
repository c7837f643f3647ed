package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/HandsomeSB/Askit/internal/adapter"
	"github.com/HandsomeSB/Askit/internal/adapter/googledrive"
	"github.com/HandsomeSB/Askit/internal/adapter/memory"
	"github.com/HandsomeSB/Askit/internal/auth"
	"github.com/HandsomeSB/Askit/internal/chunk"
	"github.com/HandsomeSB/Askit/internal/config"
	"github.com/HandsomeSB/Askit/internal/crypto"
	"github.com/HandsomeSB/Askit/internal/engine"
	"github.com/HandsomeSB/Askit/internal/handler"
	"github.com/HandsomeSB/Askit/internal/index"
	"github.com/HandsomeSB/Askit/internal/indexer"
	"github.com/HandsomeSB/Askit/internal/llm"
	"github.com/HandsomeSB/Askit/internal/secret"
)

// HybridProvider delegates to either Google Drive or the in-memory
// provider based on user ID, so demo logins work without Drive access.
type HybridProvider struct {
	googleProvider adapter.StorageProvider
	memoryProvider *memory.Provider
}

func (h *HybridProvider) GetAdapter(ctx context.Context, userID string) (adapter.StorageAdapter, error) {
	if strings.HasPrefix(userID, "demo-user-") {
		return h.memoryProvider.GetAdapter(ctx, userID)
	}
	return h.googleProvider.GetAdapter(ctx, userID)
}

// App holds the dependencies for the Lambda function.
type App struct {
	authHandler      *handler.AuthHandler
	folderHandler    *handler.FolderHandler
	queryHandler     *handler.QueryHandler
	apiGatewaySecret string
}

// NewApp initializes the application dependencies.
func NewApp(ctx context.Context) *App {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	appCfg, err := config.LoadDefault()
	if err != nil {
		panic(fmt.Sprintf("unable to load app config, %v", err))
	}

	devMode := os.Getenv("DEV_MODE") == "true"

	// DynamoDB Client. In DEV_MODE the stores fall back to memory.
	var dynamoClient *dynamodb.Client
	if devMode {
		fmt.Println("Using in-memory stores (DEV_MODE=true)")
	} else {
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
	}

	// KMS Client
	var kmsService crypto.Encryptor
	if devMode {
		kmsService = crypto.NewMockEncryptor()
		fmt.Println("Using MockEncryptor (DEV_MODE=true)")
	} else {
		kmsClient := kms.NewFromConfig(awsCfg)
		kmsKeyID := os.Getenv("KMS_KEY_ID")
		if kmsKeyID == "" {
			kmsKeyID = "alias/askit-token-key"
		}
		kmsService = crypto.NewKMSService(kmsClient, kmsKeyID)
	}

	// ---------- Secret Resolver ----------
	var resolver secret.Resolver
	if devMode {
		resolver = secret.NewEnvResolver()
		fmt.Println("Using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(awsCfg))
		fmt.Println("Using SSMResolver (SSM Parameter Store)")
	}

	googleClientSecret, err := resolveSecret(ctx, resolver, "GOOGLE_CLIENT_SECRET_PARAM", "/askit/google-client-secret")
	if err != nil {
		log.Printf("WARNING: failed to resolve GOOGLE_CLIENT_SECRET: %v", err)
	}
	jwtSecret, err := resolveSecret(ctx, resolver, "JWT_SECRET_PARAM", "/askit/jwt-secret")
	if err != nil {
		log.Printf("WARNING: failed to resolve JWT_SECRET: %v", err)
		jwtSecret = "default-dev-secret"
	}
	apiGatewaySecret, err := resolveSecret(ctx, resolver, "API_GATEWAY_SECRET_PARAM", "/askit/api-gateway-secret")
	if err != nil {
		log.Printf("WARNING: failed to resolve API_GATEWAY_SECRET: %v", err)
	}
	openAIKey, err := resolveSecret(ctx, resolver, "OPENAI_API_KEY_PARAM", "/askit/openai-api-key")
	if err != nil {
		log.Printf("WARNING: failed to resolve OPENAI_API_KEY: %v", err)
	}

	// OAuth2 Config
	redirectURL := os.Getenv("GOOGLE_REDIRECT_URL")
	if redirectURL == "" {
		if devMode {
			redirectURL = "http://localhost:8080/auth/callback"
		} else {
			frontendURL := os.Getenv("FRONTEND_URL")
			if frontendURL == "" {
				frontendURL = "http://localhost:3000"
			}
			redirectURL = frontendURL + "/api/auth/callback"
		}
	}

	oauthConfig := &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: googleClientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/drive.readonly",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: google.Endpoint,
	}

	// Auth Service + state and session stores
	authService := auth.NewService(oauthConfig, dynamoClient, tableName("USER_TOKENS_TABLE", "UserTokens"), kmsService)
	states := auth.NewStateStore(dynamoClient, tableName("OAUTH_STATES_TABLE", "OAuthStates"), auth.DefaultStateTTL)
	sessions := auth.NewSessionStore(dynamoClient, tableName("SESSIONS_TABLE", "Sessions"), auth.DefaultSessionTTL)

	// Storage Provider
	storageTimeout := time.Duration(appCfg.Indexing.StorageTimeoutSecs) * time.Second
	var storageProvider adapter.StorageProvider
	memoryProvider := memory.NewProvider()
	if devMode {
		storageProvider = memoryProvider
		fmt.Println("Using MemoryProvider (DEV_MODE=true)")
	} else {
		storageProvider = &HybridProvider{
			googleProvider: googledrive.NewProvider(authService, storageTimeout),
			memoryProvider: memoryProvider,
		}
	}

	// Index Store + pass lock
	var store index.Store
	var locker index.Locker
	if dynamoClient == nil {
		store = index.NewMemoryStore()
		locker = index.NewMemoryLock()
	} else {
		store = index.NewDynamoStore(dynamoClient, tableName("FOLDER_META_TABLE", "FolderIndexMeta"), tableName("CHUNKS_TABLE", "IndexChunks"))
		locker = index.NewPassLock(dynamoClient, tableName("PASS_LOCKS_TABLE", "IndexPassLocks"))
	}

	// LLM clients. DEV_MODE runs fully offline on the deterministic mock.
	var embedder llm.Embedder
	var generator llm.Generator
	if devMode && openAIKey == "" {
		mock := llm.NewMock()
		embedder, generator = mock, mock
		fmt.Println("Using mock embedder/generator (DEV_MODE=true, no API key)")
	} else {
		client, err := llm.NewClient(llm.Config{
			BaseURL:        appCfg.LLM.BaseURL,
			APIKey:         openAIKey,
			EmbeddingModel: appCfg.LLM.EmbeddingModel,
			ChatModel:      appCfg.LLM.ChatModel,
			Timeout:        time.Duration(appCfg.LLM.TimeoutSecs) * time.Second,
		})
		if err != nil {
			panic(fmt.Sprintf("unable to create LLM client, %v", err))
		}
		embedder, generator = client, client
	}

	// Indexer + Engine
	chunker, err := chunk.NewChunker(appCfg.Chunking.TargetSize, appCfg.Chunking.Overlap)
	if err != nil {
		panic(fmt.Sprintf("invalid chunking config, %v", err))
	}
	indexerService := indexer.New(store, locker, chunker, embedder, appCfg.Indexing.Workers)

	cutoff := appCfg.Retrieval.Cutoff
	if cutoff < 0 {
		cutoff = 0
	}
	queryEngine := engine.New(store, embedder, generator,
		engine.WithTopK(appCfg.Retrieval.TopK),
		engine.WithCutoff(cutoff),
	)

	return &App{
		authHandler:      handler.NewAuthHandler(authService, states, sessions, jwtSecret),
		folderHandler:    handler.NewFolderHandler(storageProvider, indexerService, sessions, jwtSecret),
		queryHandler:     handler.NewQueryHandler(queryEngine, sessions, jwtSecret),
		apiGatewaySecret: apiGatewaySecret,
	}
}

func tableName(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func resolveSecret(ctx context.Context, resolver secret.Resolver, envVar, fallback string) (string, error) {
	param := os.Getenv(envVar)
	if param == "" {
		param = fallback
	}
	return resolver.GetSecret(ctx, param)
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	fmt.Printf("Request: %s %s\n", method, path)

	// CORS Preflight
	if method == "OPTIONS" {
		return corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Security: Verify Request Origin (CloudFront only)
	if os.Getenv("DEV_MODE") != "true" {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			fmt.Printf("Security Block: Missing or invalid X-Origin-Verify header\n")
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	if strings.HasPrefix(path, "/api") {
		path = strings.TrimPrefix(path, "/api")
	}

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	// /auth
	if strings.HasPrefix(path, "/auth") {
		if path == "/auth/login" && method == "GET" {
			return corsResponse(must(app.authHandler.Login(ctx, req))), nil
		}
		if path == "/auth/callback" && method == "GET" {
			return corsResponse(must(app.authHandler.Callback(ctx, req))), nil
		}
		if path == "/auth/demo-login" && method == "GET" {
			return corsResponse(must(app.authHandler.DemoLogin(ctx, req))), nil
		}
		if path == "/auth/logout" && method == "POST" {
			return corsResponse(must(app.authHandler.Logout(ctx, req))), nil
		}
		if path == "/auth/user" && method == "GET" {
			return corsResponse(must(app.authHandler.GetUser(ctx, req))), nil
		}
	}

	// /folders
	if path == "/folders" && method == "GET" {
		return corsResponse(must(app.folderHandler.ListFolders(ctx, req))), nil
	}
	if strings.HasPrefix(path, "/folders/") {
		parts := strings.Split(strings.Trim(path, "/"), "/")
		// /folders/{id}/process, /folders/{id}/status, /folders/{id}/index
		if len(parts) == 3 {
			req.PathParameters["id"] = parts[1]
			action := parts[2]

			if action == "process" && method == "POST" {
				return corsResponse(must(app.folderHandler.ProcessFolder(ctx, req))), nil
			}
			if action == "status" && method == "GET" {
				return corsResponse(must(app.folderHandler.FolderStatus(ctx, req))), nil
			}
			if action == "index" && method == "DELETE" {
				return corsResponse(must(app.folderHandler.DeleteIndex(ctx, req))), nil
			}
		}
	}

	// /query
	if path == "/query" && method == "POST" {
		return corsResponse(must(app.queryHandler.Query(ctx, req))), nil
	}

	return corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = os.Getenv("FRONTEND_URL")
	if resp.Headers["Access-Control-Allow-Origin"] == "" {
		resp.Headers["Access-Control-Allow-Origin"] = "http://localhost:3000"
	}
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,PUT,DELETE,OPTIONS,PATCH"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, ignoring the error.
func must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		fmt.Printf("Handler error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
