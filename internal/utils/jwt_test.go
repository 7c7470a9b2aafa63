package utils

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", time.Hour, 7*24*time.Hour)
}

func (suite *JWTTestSuite) TestValidateToken() {
	token, err := suite.manager.GenerateAccessToken(789, "gm")
	suite.Require().NoError(err)

	claims, err := suite.manager.ValidateToken(token)
	suite.Require().NoError(err)
	suite.Equal(uint(789), claims.UserID)
	suite.Equal("gm", claims.Username)
	suite.Equal("access", claims.TokenType)
	suite.Equal(tokenIssuer, claims.Issuer)
	suite.Greater(claims.ExpiresAt.Unix(), claims.IssuedAt.Unix())
}

func (suite *JWTTestSuite) TestValidateInvalidToken() {
	claims, err := suite.manager.ValidateToken("invalid.token.format")
	suite.Error(err)
	suite.Nil(claims)

	wrongManager := NewJWTManager("wrong-secret", time.Hour, time.Hour)
	token, _ := wrongManager.GenerateAccessToken(1, "player")
	claims, err = suite.manager.ValidateToken(token)
	suite.Error(err)
	suite.Nil(claims)
}

func (suite *JWTTestSuite) TestExpiredToken() {
	expiredManager := NewJWTManager("test-secret-key", -time.Hour, -time.Hour)
	token, _ := expiredManager.GenerateAccessToken(111, "expired")

	claims, err := suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrExpiredToken)
	suite.Nil(claims)
}

func (suite *JWTTestSuite) TestRefreshAccessToken() {
	refreshToken, _ := suite.manager.GenerateRefreshToken(222)

	newAccessToken, err := suite.manager.RefreshAccessToken(refreshToken, "refresher")
	suite.Require().NoError(err)

	claims, err := suite.manager.ValidateToken(newAccessToken)
	suite.Require().NoError(err)
	suite.Equal(uint(222), claims.UserID)
	suite.Equal("refresher", claims.Username)

	accessToken, _ := suite.manager.GenerateAccessToken(1, "user")
	_, err = suite.manager.RefreshAccessToken(accessToken, "user")
	suite.Error(err)
}

func (suite *JWTTestSuite) TestGetTokenExpiry() {
	suite.Equal(time.Hour, suite.manager.GetTokenExpiry("access"))
	suite.Equal(7*24*time.Hour, suite.manager.GetTokenExpiry("refresh"))
	suite.Equal(time.Hour, suite.manager.GetTokenExpiry("unknown"))
}

func (suite *JWTTestSuite) TestConcurrentTokenGeneration() {
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(id int) {
			token, err := suite.manager.GenerateAccessToken(uint(id), fmt.Sprintf("user%d", id))
			suite.NoError(err)
			suite.NotEmpty(token)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
