package services

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const mfaIssuer = "Trade Journal"

type MFAService struct {
	issuer string
}

func NewMFAService() *MFAService {
	return &MFAService{issuer: mfaIssuer}
}

// GenerateMFASecret creates a TOTP secret for username and a base64 PNG QR code of its
// provisioning URL for the frontend to display.
func (s *MFAService) GenerateMFASecret(username string) (secret string, qrCodeBase64 string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: username,
	})
	if err != nil {
		return "", "", err
	}

	img, err := key.Image(200, 200)
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", "", err
	}
	return key.Secret(), base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ValidateToken accepts codes from the current period and one period either side.
func (s *MFAService) ValidateToken(secret, token string) bool {
	token = strings.TrimSpace(token)
	if secret == "" || token == "" {
		return false
	}
	valid, err := totp.ValidateCustom(token, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
