package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"hushbet/internal/rules"
	"hushbet/internal/storage"

	"gorm.io/gorm"
)

// inviteCharset omits 0/O/1/I so codes survive being read out loud.
const (
	inviteCharset  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteLength   = 6
	inviteAttempts = 10
)

func generateInviteCode() string {
	b := make([]byte, inviteLength)
	for i := range b {
		b[i] = inviteCharset[rand.Intn(len(inviteCharset))]
	}
	return string(b)
}

// validInviteCode holds custom codes to the same alphabet as generated ones,
// so 0/O and 1/I confusion cannot be introduced through the custom path.
func validInviteCode(code string) bool {
	if len(code) != inviteLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(inviteCharset, code[i]) < 0 {
			return false
		}
	}
	return true
}

// pickInviteCode returns a free invite code: the caller's custom code when
// well-formed and unclaimed, otherwise a fresh random one.
func (s *MarketService) pickInviteCode(ctx context.Context, tx storage.Store, custom string) (string, error) {
	if custom != "" {
		code := strings.ToUpper(strings.TrimSpace(custom))
		if !validInviteCode(code) {
			return "", rules.ErrInvalidInviteCode
		}
		_, err := tx.GetMarketByInviteCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		return "", rules.ErrInviteCodeTaken
	}

	for i := 0; i < inviteAttempts; i++ {
		code := generateInviteCode()
		_, err := tx.GetMarketByInviteCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
	}
	return "", fmt.Errorf("could not generate a free invite code after %d attempts", inviteAttempts)
}
