package service

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xela07ax/helpdesk-agent-core/internal/domain"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra"
	"github.com/xela07ax/helpdesk-agent-core/internal/infra/auth"
	"golang.org/x/crypto/bcrypt"
)

// AuthService выдает и проверяет RS256-токены операторов Console API.
// Операторы приезжают из конфига (bcrypt-хэши), БД для учеток не нужна.
// Embedding BaseValidator дает сервису метод VerifyToken для middleware.
type AuthService struct {
	*auth.BaseValidator
	operators  map[string]domain.Operator // username -> operator
	privateKey *rsa.PrivateKey
	tokenTTL   time.Duration
}

func NewAuthService(cfg []infra.OperatorConfig, validator *auth.BaseValidator, privateKey *rsa.PrivateKey, tokenTTL time.Duration) *AuthService {
	operators := make(map[string]domain.Operator, len(cfg))
	for _, op := range cfg {
		scopes := make(map[string]bool, len(op.Scopes))
		for _, s := range op.Scopes {
			scopes[s] = true
		}
		operators[op.Username] = domain.Operator{
			ID:           op.Username,
			Username:     op.Username,
			PasswordHash: op.PasswordHash,
			Scopes:       scopes,
		}
	}

	return &AuthService{
		BaseValidator: validator,
		operators:     operators,
		privateKey:    privateKey,
		tokenTTL:      tokenTTL,
	}
}

func (s *AuthService) GenerateToken(username, password string) (*domain.TokenResponse, error) {
	// 1. Аутентификация (источник правды — конфиг)
	operator, ok := s.operators[username]
	if !ok {
		return nil, errors.New("invalid credentials")
	}

	// 2. Проверка пароля (используем bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	// 3. Формирование Claims
	expiresAt := time.Now().Add(s.tokenTTL)
	claims := &domain.CustomClaims{
		UserID: operator.ID,
		Scopes: operator.Scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "helpdesk-console",
			Subject:   operator.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	// 4. Подпись токена ЗАКРЫТЫМ КЛЮЧОМ (RS256)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.TokenResponse{
		AccessToken: signedToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}
