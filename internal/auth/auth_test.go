package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ukydev/gaadi-fleet/internal/models"
)

func TestNewService(t *testing.T) {
	service, err := NewService()
	assert.NoError(t, err)
	assert.NotNil(t, service)
	assert.NotEmpty(t, service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)
}

func TestService_HashPassword(t *testing.T) {
	service, _ := NewService()

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
}

func TestService_CheckPassword(t *testing.T) {
	service, _ := NewService()

	password := "testpassword123"
	hash, _ := service.HashPassword(password)

	assert.True(t, service.CheckPassword(password, hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_GenerateAndValidateToken(t *testing.T) {
	service, _ := NewService()

	user := &models.User{
		ID:       primitive.NewObjectID(),
		Username: "ramesh",
		Role:     models.RoleDriver,
	}

	token, err := service.GenerateToken(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, "ramesh", claims.Username)
	assert.Equal(t, models.RoleDriver, claims.Role)

	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateToken_BearerPrefix(t *testing.T) {
	service, _ := NewService()
	user := &models.User{ID: primitive.NewObjectID(), Username: "ramesh", Role: models.RoleAdmin}
	token, _ := service.GenerateToken(user)

	claims, err := service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)
	assert.Equal(t, "ramesh", claims.Username)
}

func TestService_RevokeToken(t *testing.T) {
	service, _ := NewService()
	user := &models.User{ID: primitive.NewObjectID(), Username: "ramesh", Role: models.RoleMechanic}
	token, _ := service.GenerateToken(user)

	_, err := service.ValidateToken(token)
	assert.NoError(t, err)

	service.RevokeToken(token)

	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrRevokedToken, err)
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service, _ := NewService()

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{"valid bearer", "Bearer sometoken", false},
		{"missing header", "", true},
		{"wrong scheme", "Basic sometoken", true},
		{"empty token", "Bearer ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.ExtractTokenFromHeader(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Validators(t *testing.T) {
	service, _ := NewService()

	assert.Error(t, service.ValidatePassword("short"))
	assert.NoError(t, service.ValidatePassword("longenough"))

	assert.Error(t, service.ValidateEmail("not-an-email"))
	assert.NoError(t, service.ValidateEmail("driver@gaadi.in"))

	assert.Error(t, service.ValidateUsername("ab"))
	assert.NoError(t, service.ValidateUsername("ramesh"))
}
