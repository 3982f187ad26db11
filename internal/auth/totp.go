package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPVariable is the builtin variable name that expands to the current code.
const TOTPVariable = "totp"

// Only the fields code generation reads; GenerateCodeCustom ignores Skew.
var totpOpts = totp.ValidateOpts{
	Period:    30,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

func GenerateTOTP(secret string) (string, error) {
	return generateAt(secret, time.Now().UTC())
}

func generateAt(secret string, at time.Time) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("totp secret cannot be empty")
	}

	cleanSecret := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	passcode, err := totp.GenerateCodeCustom(cleanSecret, at, totpOpts)
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return passcode, nil
}

// Builtins returns a provider of variables computed at run start. With an
// empty secret it provides nothing, so ${totp} stays unresolved.
func Builtins(secret string) func() (map[string]string, error) {
	return func() (map[string]string, error) {
		if secret == "" {
			return nil, nil
		}
		code, err := GenerateTOTP(secret)
		if err != nil {
			return nil, err
		}
		return map[string]string{TOTPVariable: code}, nil
	}
}
