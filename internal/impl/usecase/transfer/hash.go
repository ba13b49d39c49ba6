package impl_transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	port_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/usecase/transfer"
)

func HashTransferInput(in port_transfer.TransferInput) string {
	from := strings.TrimSpace(in.AccountOrigin)
	to := strings.TrimSpace(in.AccountDestination)

	payload := fmt.Sprintf("%s|%s|%s", from, to, in.Value.String())

	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
