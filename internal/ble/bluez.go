package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

const (
	bluezBus          = "org.bluez"
	bluezAdapter1     = "org.bluez.Adapter1"
	bluezDevice1      = "org.bluez.Device1"
	bluezGattService  = "org.bluez.GattService1"
	bluezGattChar     = "org.bluez.GattCharacteristic1"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"

	pollInterval = 200 * time.Millisecond
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZ talks to the host Bluetooth stack over the system DBus.
type BlueZ struct {
	adapter string
	logger  *slog.Logger

	// characteristic object paths seen in the last enumeration; lets a
	// cached wake skip GetManagedObjects
	mu    sync.Mutex
	paths map[charKey]dbus.ObjectPath
}

// NewBlueZ returns an Adapter bound to a BlueZ controller such as "hci0".
func NewBlueZ(adapter string, logger *slog.Logger) *BlueZ {
	adapter = strings.TrimSpace(adapter)
	if adapter == "" {
		adapter = "hci0"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BlueZ{adapter: adapter, logger: logger, paths: make(map[charKey]dbus.ObjectPath)}
}

// Available reports whether the controller exists and is powered.
func (b *BlueZ) Available() bool {
	bus, err := dbus.SystemBus()
	if err != nil {
		return false
	}
	powered, err := property[bool](bus, b.adapterPath(), bluezAdapter1, "Powered")
	return err == nil && powered
}

// Connect resolves the device object, connects, and waits for GATT services.
func (b *BlueZ) Connect(ctx context.Context, addr frame.Address) (Conn, error) {
	// shared cached connection; never closed here
	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: system bus: %v", ErrAdapterUnavailable, err)
	}
	powered, err := property[bool](bus, b.adapterPath(), bluezAdapter1, "Powered")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapterUnavailable, b.adapter, err)
	}
	if !powered {
		return nil, fmt.Errorf("%w: %s not powered", ErrAdapterUnavailable, b.adapter)
	}

	devicePath := dbus.ObjectPath(string(b.adapterPath()) + "/" + addr.DBusSuffix())
	if err := b.ensureKnown(ctx, bus, devicePath); err != nil {
		return nil, err
	}

	connected, _ := property[bool](bus, devicePath, bluezDevice1, "Connected")
	if !connected {
		call := bus.Object(bluezBus, devicePath).CallWithContext(ctx, bluezDevice1+".Connect", 0)
		if call.Err != nil {
			return nil, classifyConnectError(ctx, call.Err)
		}
	}

	conn := &bluezConn{bus: bus, device: devicePath, logger: b.logger, owner: b}
	if err := conn.waitResolved(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (b *BlueZ) adapterPath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + b.adapter)
}

// ensureKnown runs a short LE scan when BlueZ has no object for the device.
func (b *BlueZ) ensureKnown(ctx context.Context, bus *dbus.Conn, devicePath dbus.ObjectPath) error {
	if _, err := property[string](bus, devicePath, bluezDevice1, "Address"); err == nil {
		return nil
	}

	adapter := bus.Object(bluezBus, b.adapterPath())
	filter := map[string]dbus.Variant{"Transport": dbus.MakeVariant("le")}
	if call := adapter.CallWithContext(ctx, bluezAdapter1+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		b.logger.Debug("ble SetDiscoveryFilter failed", "err", call.Err)
	}
	if call := adapter.CallWithContext(ctx, bluezAdapter1+".StartDiscovery", 0); call.Err != nil {
		b.logger.Debug("ble StartDiscovery failed, relying on cached devices", "err", call.Err)
	} else {
		defer adapter.Call(bluezAdapter1+".StopDiscovery", 0)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s not seen during scan", ErrOutOfRange, devicePath)
		case <-ticker.C:
			if _, err := property[string](bus, devicePath, bluezDevice1, "Address"); err == nil {
				return nil
			}
		}
	}
}

type bluezConn struct {
	bus    *dbus.Conn
	device dbus.ObjectPath
	logger *slog.Logger
	owner  *BlueZ

	chars map[charKey]dbus.ObjectPath
}

type charKey struct {
	device         dbus.ObjectPath
	service        uuid.UUID
	characteristic uuid.UUID
}

func (b *BlueZ) rememberPaths(device dbus.ObjectPath, chars map[charKey]dbus.ObjectPath) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.paths {
		if key.device == device {
			delete(b.paths, key)
		}
	}
	for key, path := range chars {
		b.paths[key] = path
	}
}

func (b *BlueZ) knownPath(key charKey) (dbus.ObjectPath, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	path, ok := b.paths[key]
	return path, ok
}

func (c *bluezConn) waitResolved(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		resolved, err := property[bool](c.bus, c.device, bluezDevice1, "ServicesResolved")
		if err == nil && resolved {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: services not resolved", ErrConnectTimeout)
		case <-ticker.C:
		}
	}
}

// Services lists the device's GATT tree ordered by object path.
func (c *bluezConn) Services(ctx context.Context) ([]Service, error) {
	var objects managedObjects
	call := c.bus.Object(bluezBus, "/").CallWithContext(ctx, dbusObjectManager+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetManagedObjects: %w", call.Err)
	}
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("decode managed objects: %w", err)
	}

	prefix := string(c.device) + "/"
	servicePaths := make([]string, 0)
	services := make(map[dbus.ObjectPath]*Service)
	for path, ifaces := range objects {
		props, ok := ifaces[bluezGattService]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		id, ok := variantUUID(props["UUID"])
		if !ok {
			continue
		}
		services[path] = &Service{UUID: id}
		servicePaths = append(servicePaths, string(path))
	}

	charPaths := make([]string, 0)
	for path, ifaces := range objects {
		if _, ok := ifaces[bluezGattChar]; ok && strings.HasPrefix(string(path), prefix) {
			charPaths = append(charPaths, string(path))
		}
	}
	sort.Strings(charPaths)

	c.chars = make(map[charKey]dbus.ObjectPath)
	for _, raw := range charPaths {
		path := dbus.ObjectPath(raw)
		props := objects[path][bluezGattChar]
		id, ok := variantUUID(props["UUID"])
		if !ok {
			continue
		}
		owner, _ := props["Service"].Value().(dbus.ObjectPath)
		svc, ok := services[owner]
		if !ok {
			continue
		}
		flags, _ := props["Flags"].Value().([]string)
		svc.Characteristics = append(svc.Characteristics, Characteristic{UUID: id, Flags: flags})
		c.chars[charKey{device: c.device, service: svc.UUID, characteristic: id}] = path
	}
	if c.owner != nil {
		c.owner.rememberPaths(c.device, c.chars)
	}

	sort.Strings(servicePaths)
	out := make([]Service, 0, len(servicePaths))
	for _, raw := range servicePaths {
		out = append(out, *services[dbus.ObjectPath(raw)])
	}
	return out, nil
}

// Write sends payload as a write-with-response. The object path comes from
// this connection's enumeration, then from an earlier one if its UUID still
// matches; only a miss on both costs a GetManagedObjects round trip.
func (c *bluezConn) Write(ctx context.Context, service, characteristic uuid.UUID, payload []byte) error {
	path, err := c.charPath(ctx, charKey{device: c.device, service: service, characteristic: characteristic})
	if err != nil {
		return err
	}
	options := map[string]dbus.Variant{"type": dbus.MakeVariant("request")}
	call := c.bus.Object(bluezBus, path).CallWithContext(ctx, bluezGattChar+".WriteValue", 0, payload, options)
	if call.Err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: write: %v", ErrConnectTimeout, call.Err)
		}
		return fmt.Errorf("%w: %v", ErrWriteRejected, call.Err)
	}
	return nil
}

func (c *bluezConn) charPath(ctx context.Context, key charKey) (dbus.ObjectPath, error) {
	if path, ok := c.chars[key]; ok {
		return path, nil
	}
	if c.chars == nil && c.owner != nil {
		if path, ok := c.owner.knownPath(key); ok {
			if id, err := property[string](c.bus, path, bluezGattChar, "UUID"); err == nil && strings.EqualFold(id, key.characteristic.String()) {
				return path, nil
			}
		}
	}
	if c.chars == nil {
		if _, err := c.Services(ctx); err != nil {
			return "", err
		}
	}
	path, ok := c.chars[key]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrCharacteristicNotFound, key.service, key.characteristic)
	}
	return path, nil
}

// Close disconnects the device; the system bus stays open.
func (c *bluezConn) Close() error {
	call := c.bus.Object(bluezBus, c.device).Call(bluezDevice1+".Disconnect", 0)
	return call.Err
}

func classifyConnectError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case "org.freedesktop.DBus.Error.UnknownObject", "org.bluez.Error.DoesNotExist":
			return fmt.Errorf("%w: %v", ErrOutOfRange, err)
		case "org.bluez.Error.NotReady":
			return fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
		}
	}
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "timeout") || strings.Contains(message, "timed out") {
		return fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrOutOfRange, err)
}

func variantUUID(v dbus.Variant) (uuid.UUID, bool) {
	raw, ok := v.Value().(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

func property[T any](bus *dbus.Conn, path dbus.ObjectPath, iface, name string) (T, error) {
	var zero T
	variant, err := bus.Object(bluezBus, path).GetProperty(iface + "." + name)
	if err != nil {
		return zero, err
	}
	value, ok := variant.Value().(T)
	if !ok {
		return zero, fmt.Errorf("property %s.%s has unexpected type %T", iface, name, variant.Value())
	}
	return value, nil
}
