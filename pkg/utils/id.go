package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID 32 位十六进制（去掉连字符的 uuid v4），不含 "-"，可安全拼进 tx_ref
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
