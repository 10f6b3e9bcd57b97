package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/ksred/escrow-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid API credentials")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Test credentials for the two trading parties, registered by the
// server outside production and used by the simulation client.
var (
	TestInitiatorAPIKey    = "initiator-api-key"
	TestInitiatorAPISecret = "initiator-api-secret"
	TestInitiatorAccount   = "acct-initiator"

	TestCounterpartyAPIKey    = "counterparty-api-key"
	TestCounterpartyAPISecret = "counterparty-api-secret"
	TestCounterpartyAccount   = "acct-counterparty"
)

// Credentials represents the API authentication credentials
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure. AccountID is the caller
// identity every escrow operation runs as.
type Claims struct {
	jwt.RegisteredClaims
	AccountID   string   `json:"account_id"`
	Permissions []string `json:"permissions"`
}

type account struct {
	apiSecret string
	accountID string
}

// Service handles authentication and authorization operations
type Service struct {
	jwtSecret []byte
	// In a real implementation, this would be replaced with a database
	accounts map[string]account // keyed by API key
}

// NewService creates a new authentication service with the given JWT secret
func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		accounts:  make(map[string]account),
	}
}

// RegisterAccount registers API credentials for an account identity
func (s *Service) RegisterAccount(apiKey, apiSecret, accountID string) {
	s.accounts[apiKey] = account{apiSecret: apiSecret, accountID: accountID}
}

// GenerateToken generates a JWT token for valid API credentials
// The token carries the account identity with 24-hour expiration
func (s *Service) GenerateToken(creds Credentials) (*TokenResponse, error) {
	acct, ok := s.accounts[creds.APIKey]
	if !ok || acct.apiSecret != creds.APISecret {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(24 * time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		AccountID:   acct.accountID,
		Permissions: []string{"escrow"},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler handles POST requests to generate JWT tokens
// Request body should contain API credentials
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(creds)
		if err == ErrInvalidCredentials {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// GetAccountID extracts the account ID from parsed JWT claims
// Returns empty string if the account ID is not found or invalid
func GetAccountID(claims interface{}) string {
	if jwtClaims, ok := claims.(jwt.MapClaims); ok {
		if accountID, ok := jwtClaims["account_id"].(string); ok {
			return accountID
		}
	}
	return ""
}
