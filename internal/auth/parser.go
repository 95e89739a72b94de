package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"fleetguard/internal/model"
)

const issuerName = "fleetguard"

type Claims struct {
	WorkerID string           `json:"wid"`
	Name     string           `json:"name"`
	Role     model.WorkerRole `json:"role"`
	Demo     bool             `json:"demo,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() model.Principal {
	return model.Principal{WorkerID: c.WorkerID, Name: c.Name, Role: c.Role, Demo: c.Demo}
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuerName))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.WorkerID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
