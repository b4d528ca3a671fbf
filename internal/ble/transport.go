package ble

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

var (
	ErrAdapterUnavailable       = errors.New("bluetooth adapter unavailable")
	ErrConnectTimeout           = errors.New("ble connection timeout")
	ErrOutOfRange               = errors.New("ble device out of range")
	ErrCharacteristicNotFound   = errors.New("characteristic not found")
	ErrWriteRejected            = errors.New("characteristic write rejected")
	ErrNoWritableCharacteristic = errors.New("no writable characteristic discovered")
)

// Characteristic is one GATT characteristic as reported by the peripheral.
type Characteristic struct {
	UUID  uuid.UUID
	Flags []string
}

// Writable reports whether the characteristic accepts writes.
func (c Characteristic) Writable() bool {
	return slices.Contains(c.Flags, "write") || slices.Contains(c.Flags, "write-without-response")
}

// Service is one primary GATT service with its characteristics.
type Service struct {
	UUID            uuid.UUID
	Characteristics []Characteristic
}

// Adapter opens connections to a peripheral.
type Adapter interface {
	Connect(ctx context.Context, addr frame.Address) (Conn, error)
}

// Conn is an open connection; Close must be called on every path.
type Conn interface {
	Services(ctx context.Context) ([]Service, error)
	Write(ctx context.Context, service, characteristic uuid.UUID, payload []byte) error
	Close() error
}
