package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"slipdesk/internal/platform/middleware"
	derrors "slipdesk/pkg/domain-errors"
)

const (
	audienceTeller = "slipdesk-teller"
	audienceCancel = "slipdesk-cancel"
)

// TellerTokenClaims are carried by teller bearer tokens issued by the branch
// identity system.
type TellerTokenClaims struct {
	TellerID string `json:"teller_id"`
	BranchID string `json:"branch_id"`
	jwt.RegisteredClaims
}

// CancelTokenClaims bind a customer cancel token to a single DRID.
type CancelTokenClaims struct {
	DRID string `json:"drid"`
	jwt.RegisteredClaims
}

// JWTService handles token creation and validation for both audiences.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey string, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// GenerateTellerToken mints a teller bearer token. Exposed for the dev login
// shim and for tests; production deployments mint these in the branch SSO.
func (s *JWTService) GenerateTellerToken(tellerID, branchID string, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, TellerTokenClaims{
		TellerID: tellerID,
		BranchID: branchID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{audienceTeller},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// GenerateCancelToken mints the customer cancel token returned by intake.
// The token lives exactly as long as the slip it is bound to.
func (s *JWTService) GenerateCancelToken(drid string, expiresAt time.Time) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, CancelTokenClaims{
		DRID: drid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{audienceCancel},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateTellerToken implements middleware.TellerTokenValidator.
func (s *JWTService) ValidateTellerToken(tokenString string) (*middleware.TellerClaims, error) {
	claims := &TellerTokenClaims{}
	if err := s.parse(tokenString, claims, audienceTeller); err != nil {
		return nil, err
	}
	if claims.TellerID == "" {
		return nil, derrors.New(derrors.CodeUnauthorized, "token missing teller identity")
	}
	return &middleware.TellerClaims{
		TellerID: claims.TellerID,
		BranchID: claims.BranchID,
	}, nil
}

// ValidateCancelToken implements middleware.CancelTokenValidator.
func (s *JWTService) ValidateCancelToken(tokenString string) (string, error) {
	claims := &CancelTokenClaims{}
	if err := s.parse(tokenString, claims, audienceCancel); err != nil {
		return "", err
	}
	if claims.DRID == "" {
		return "", derrors.New(derrors.CodeUnauthorized, "token missing reference binding")
	}
	return claims.DRID, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, audience string) error {
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithAudience(audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return derrors.New(derrors.CodeUnauthorized, "token has expired")
		}
		return derrors.New(derrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return derrors.New(derrors.CodeUnauthorized, "invalid token")
	}
	return nil
}
