package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/HandsomeSB/Askit/internal/auth"
)

// AuthHandler handles login, callback, logout, and profile requests.
type AuthHandler struct {
	authService *auth.Service
	states      *auth.StateStore
	sessions    *auth.SessionStore
	jwtSecret   string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *auth.Service, states *auth.StateStore, sessions *auth.SessionStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{authService: s, states: states, sessions: sessions, jwtSecret: jwtSecret}
}

// Login initiates the Google OAuth2 flow with a single-use state token.
func (h *AuthHandler) Login(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	state, err := h.states.Issue(ctx)
	if err != nil {
		fmt.Printf("Issue state error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to start login"), nil
	}
	url := h.authService.GenerateAuthURL(state)

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": url,
		},
	}, nil
}

// Callback handles the OAuth2 callback from Google. The state token must
// match one we issued and can only be consumed once; a replayed or expired
// callback is rejected before any code exchange happens.
func (h *AuthHandler) Callback(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Consume the state token
	state := req.QueryStringParameters["state"]
	if err := h.states.Consume(ctx, state); err != nil {
		fmt.Printf("Consume state error: %v\n", err)
		return errorResponse(http.StatusUnauthorized, "Invalid or expired login state"), nil
	}

	code := req.QueryStringParameters["code"]
	if code == "" {
		return errorResponse(http.StatusBadRequest, "Missing code"), nil
	}

	// 2. Exchange code for token
	token, err := h.authService.ExchangeCode(ctx, code)
	if err != nil {
		fmt.Printf("ExchangeCode error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to exchange code"), nil
	}

	// 3. Get User Info from Google
	oauth2Service, err := oauth2.NewService(ctx, option.WithTokenSource(h.authService.Config().TokenSource(ctx, token)))
	if err != nil {
		fmt.Printf("NewService error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to create oauth2 service"), nil
	}
	userinfo, err := oauth2Service.Userinfo.Get().Do()
	if err != nil {
		fmt.Printf("Userinfo error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to get user info"), nil
	}
	userID := userinfo.Id

	// 4. Save the encrypted refresh token
	if err := h.authService.SaveToken(ctx, userID, token); err != nil {
		// A subsequent login may legitimately carry no refresh token.
		fmt.Printf("SaveToken error: %v\n", err)
	}

	// 5. Create the server-side session and its JWT cookie
	resp, err := h.issueSession(ctx, userID, userinfo.Email, userinfo.Name)
	if err != nil {
		fmt.Printf("issueSession error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to create session"), nil
	}
	return resp, nil
}

// DemoLogin creates a session without Google OAuth, backed by the
// in-memory storage adapter.
func (h *AuthHandler) DemoLogin(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID := fmt.Sprintf("demo-user-%s", uuid.New().String())
	resp, err := h.issueSession(ctx, userID, "demo@askit.local", "Demo User")
	if err != nil {
		fmt.Printf("DemoLogin issueSession error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to create session"), nil
	}
	return resp, nil
}

func (h *AuthHandler) issueSession(ctx context.Context, userID, email, name string) (events.APIGatewayProxyResponse, error) {
	record, err := h.sessions.Create(ctx, userID)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	claims := jwt.MapClaims{
		"sub":   userID,
		"sid":   record.SessionID,
		"email": email,
		"name":  name,
		"exp":   record.ExpiresAt,
	}
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := jwtToken.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to sign token: %w", err)
	}

	cookie := sessionCookie(signedToken, int(h.sessions.TTL().Seconds()))
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusFound,
		Headers: map[string]string{
			"Location": fmt.Sprintf("%s/?success=true", frontendURL()),
		},
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {cookie},
		},
	}, nil
}

// Logout destroys the server-side session and clears the cookie.
func (h *AuthHandler) Logout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// Best effort: clear the cookie even when the session is already gone.
	if record, err := GetSession(ctx, req, h.jwtSecret, h.sessions); err == nil {
		if err := h.sessions.Delete(ctx, record.SessionID); err != nil {
			fmt.Printf("Delete session error: %v\n", err)
		}
	}

	cookie := sessionCookie("", 0)
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       `{"success":true}`,
		MultiValueHeaders: map[string][]string{
			"Set-Cookie": {cookie},
		},
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, nil
}

// GetUser returns the current user's profile.
func (h *AuthHandler) GetUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Validate Session
	record, err := GetSession(ctx, req, h.jwtSecret, h.sessions)
	if err != nil {
		return unauthorized(err), nil
	}

	// 2. Return Profile
	return jsonResponse(http.StatusOK, map[string]any{
		"id":         record.UserID,
		"session_id": record.SessionID,
		"expires_at": record.ExpiresAt,
	}), nil
}
