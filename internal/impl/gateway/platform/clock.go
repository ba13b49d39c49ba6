package impl_platform

import (
	"time"

	port_platform "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/platform"

	"github.com/google/uuid"
)

type SystemClock struct{}

var _ port_platform.Clock = SystemClock{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type UUIDGenerator struct{}

var _ port_platform.IDGenerator = UUIDGenerator{}

func (UUIDGenerator) NewUUID() uuid.UUID { return uuid.New() }
