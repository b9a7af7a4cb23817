package embed

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const configIDSuffixLen = 9

// NewConfigID returns "<unix-millis>-<9 base36 chars>".
func NewConfigID(now time.Time) string {
	u := uuid.New()
	suffix := new(big.Int).SetBytes(u[:]).Text(36)
	if len(suffix) < configIDSuffixLen {
		suffix = strings.Repeat("0", configIDSuffixLen-len(suffix)) + suffix
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + suffix[len(suffix)-configIDSuffixLen:]
}
