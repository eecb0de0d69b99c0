package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/0xteamCookie/LearnAbility-backend/internal/pkg/timeutil"
)

func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func newSessionID() string {
	return fmt.Sprintf("session-%d", timeutil.NowUnixMilli())
}
