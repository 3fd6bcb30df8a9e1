package jwt

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldvision/fieldvision/pkg/encryption"
	"github.com/fieldvision/fieldvision/pkg/file"
)

// TokenManagerInterface defines methods to manage the agent's bearer token.
type TokenManagerInterface interface {
	Initialize() error
	LoadToken() error
	SaveToken(token string) error
	GetToken() string
	IsTokenValid() (bool, error)
}

// tokenData holds the bearer token for storage.
type tokenData struct {
	BearerToken string `json:"bearer_token,omitempty"`
}

// TokenManager manages the provisioned bearer token with encrypted file storage.
// The agent holds no signing secret. Signature verification happens on the
// back office; locally the manager only inspects the expiry claim.
type TokenManager struct {
	TokenFilePath     string
	Token             string
	FileOps           file.FileOperations
	EncryptionManager encryption.EncryptionManagerInterface
}

// NewTokenManager initializes a new TokenManager instance.
func NewTokenManager(tokenFilePath string, fileOps file.FileOperations, encryptionManager encryption.EncryptionManagerInterface) TokenManagerInterface {
	return &TokenManager{
		TokenFilePath:     tokenFilePath,
		FileOps:           fileOps,
		EncryptionManager: encryptionManager,
	}
}

// Initialize loads the stored token into memory.
func (tm *TokenManager) Initialize() error {
	return tm.LoadToken()
}

// LoadToken reads the bearer token from the encrypted file.
// If the file does not exist or is empty, it initializes to an empty string.
func (tm *TokenManager) LoadToken() error {
	data, err := tm.FileOps.ReadFileRaw(tm.TokenFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			tm.Token = ""
			return nil
		}
		return err
	}

	if len(data) == 0 {
		tm.Token = ""
		return nil
	}

	decryptedData, err := tm.EncryptionManager.Decrypt(data)
	if err != nil {
		return err
	}

	var tokens tokenData
	if err := json.Unmarshal(decryptedData, &tokens); err != nil {
		return errors.New("failed to parse token data: " + err.Error())
	}

	tm.Token = tokens.BearerToken
	return nil
}

// SaveToken encrypts and persists the given bearer token.
func (tm *TokenManager) SaveToken(token string) error {
	if _, err := parseUnverified(token); err != nil {
		return errors.New("malformed bearer token: " + err.Error())
	}

	data, err := json.Marshal(tokenData{BearerToken: token})
	if err != nil {
		return errors.New("failed to serialize token data: " + err.Error())
	}

	encryptedData, err := tm.EncryptionManager.Encrypt(data)
	if err != nil {
		return errors.New("failed to encrypt token data: " + err.Error())
	}

	if err := tm.FileOps.WriteFileRaw(tm.TokenFilePath, encryptedData); err != nil {
		return err
	}

	tm.Token = token
	return nil
}

// GetToken retrieves the current bearer token only if it has not expired.
func (tm *TokenManager) GetToken() string {
	if tm.Token == "" {
		return ""
	}

	isValid, err := tm.IsTokenValid()
	if err != nil || !isValid {
		return ""
	}

	return tm.Token
}

// IsTokenValid checks whether the current token carries an unexpired exp claim.
func (tm *TokenManager) IsTokenValid() (bool, error) {
	if tm.Token == "" {
		return false, nil
	}

	token, err := parseUnverified(tm.Token)
	if err != nil {
		return false, nil // Malformed tokens are considered invalid, not an error
	}

	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, errors.New("JWT expiration (exp) claim missing or invalid")
	}

	if time.Now().After(exp.Time) {
		return false, nil
	}

	return true, nil
}

// parseUnverified decodes the token without checking its signature.
func parseUnverified(tokenString string) (*jwt.Token, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	return token, nil
}
