package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"

	"github.com/HandsomeSB/Askit/internal/auth"
	"github.com/HandsomeSB/Askit/internal/model"
)

// GetSession extracts the session token from the Authorization header or
// session cookie, verifies the JWT, and validates the embedded session ID
// against the server-side store. The JWT alone is not enough: logout and
// expiry are enforced server side.
func GetSession(ctx context.Context, req events.APIGatewayProxyRequest, jwtSecret string, sessions *auth.SessionStore) (*model.SessionRecord, error) {
	// Helper for case-insensitive header lookup
	getHeader := func(name string) string {
		for k, v := range req.Headers {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		return ""
	}

	// 1. Check Authorization Header (Bearer <token>)
	tokenString := ""
	authHeader := getHeader("Authorization")
	if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}

	// 2. Check Cookie
	if tokenString == "" {
		cookies := getHeader("Cookie")
		if cookies != "" {
			for _, part := range strings.Split(cookies, ";") {
				part = strings.TrimSpace(part)
				if strings.HasPrefix(part, "session_token=") {
					tokenString = strings.TrimPrefix(part, "session_token=")
					break
				}
			}
		}
	}

	if tokenString == "" {
		return nil, fmt.Errorf("no authorization token found")
	}

	// 3. Verify JWT
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return nil, fmt.Errorf("invalid token claims")
	}

	// 4. Validate the session server side
	return sessions.Validate(ctx, sid)
}

// jsonResponse marshals a JSON body with the given status code.
func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(v)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// errorResponse wraps a plain message as {"error": msg}.
func errorResponse(status int, msg string) events.APIGatewayProxyResponse {
	return jsonResponse(status, map[string]string{"error": msg})
}

// unauthorized distinguishes an expired session from a missing or invalid
// one so the frontend can show the right message.
func unauthorized(err error) events.APIGatewayProxyResponse {
	if err == model.ErrSessionExpired {
		return errorResponse(http.StatusUnauthorized, "Session expired, please log in again")
	}
	return errorResponse(http.StatusUnauthorized, "Unauthorized")
}

// sessionCookie builds the session_token cookie. SameSite depends on
// DEV_MODE, matching the frontend deployment.
func sessionCookie(token string, maxAge int) string {
	sameSite := "Lax"
	if os.Getenv("DEV_MODE") != "true" {
		sameSite = "None"
	}
	return fmt.Sprintf("session_token=%s; HttpOnly; Path=/; Max-Age=%d; SameSite=%s; Secure", token, maxAge, sameSite)
}

func frontendURL() string {
	url := os.Getenv("FRONTEND_URL")
	if url == "" {
		url = "http://localhost:3000"
	}
	return url
}
