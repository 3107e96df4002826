package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/Clark-Hu/yamdb/internal/domain"
)

const confirmationCodeBytes = 12

// ConfirmationCode derives the code a user exchanges for a token. It is bound
// to the account id, username and email, so it stops working after any of
// them changes or the secret rotates.
func (v Verifier) ConfirmationCode(u domain.User) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte("confirm\x00"))
	mac.Write([]byte(strconv.FormatInt(u.ID, 10)))
	mac.Write([]byte{0})
	mac.Write([]byte(u.Username))
	mac.Write([]byte{0})
	mac.Write([]byte(u.Email))
	return hex.EncodeToString(mac.Sum(nil)[:confirmationCodeBytes])
}

// CheckConfirmationCode reports whether code was issued for u.
func (v Verifier) CheckConfirmationCode(u domain.User, code string) bool {
	want := v.ConfirmationCode(u)
	return hmac.Equal([]byte(want), []byte(code))
}
