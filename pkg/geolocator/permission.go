package geolocator

import (
	"context"
	"sync"
	"time"

	"github.com/go-drift/geolocator/pkg/errors"
	"github.com/go-drift/geolocator/pkg/platform"
)

// PermissionStatus represents the state of a location permission.
type PermissionStatus string

const (
	// PermissionGranted indicates access has been granted.
	PermissionGranted PermissionStatus = "granted"

	// PermissionDenied indicates the user denied the permission. The app may
	// request again.
	PermissionDenied PermissionStatus = "denied"

	// PermissionPermanentlyDenied indicates the user denied with "don't ask
	// again" (Android) or denied twice (iOS). The app cannot request again;
	// direct the user to Settings.
	PermissionPermanentlyDenied PermissionStatus = "permanently_denied"

	// PermissionRestricted indicates a system policy prevents granting
	// (parental controls, MDM). The user cannot change this.
	PermissionRestricted PermissionStatus = "restricted"

	// PermissionNotDetermined indicates the user has not yet been asked.
	// Calling Request will show the system permission dialog.
	PermissionNotDetermined PermissionStatus = "not_determined"

	// PermissionUnknown indicates the status could not be determined.
	PermissionUnknown PermissionStatus = "unknown"
)

// DefaultPermissionTimeout is the default timeout for permission requests.
const DefaultPermissionTimeout = 30 * time.Second

const (
	permissionsChannelName       = "geolocator/permissions"
	permissionChangesChannelName = "geolocator/permissions/changes"
)

// isTerminalPermission returns true if the status is a terminal state that
// won't change from showing a permission dialog.
func isTerminalPermission(status PermissionStatus) bool {
	switch status {
	case PermissionGranted, PermissionPermanentlyDenied, PermissionRestricted:
		return true
	default:
		return false
	}
}

var (
	permissionChangesOnce    sync.Once
	permissionChangesChannel *platform.EventChannel
)

func getPermissionChangesChannel() *platform.EventChannel {
	permissionChangesOnce.Do(func() {
		permissionChangesChannel = platform.NewEventChannel(permissionChangesChannelName)
	})
	return permissionChangesChannel
}

// Permission provides access to one location permission level. Use
// LocationWhenInUse and LocationAlways to obtain the two levels.
type Permission struct {
	name    string
	channel *platform.MethodChannel
	changes *platform.EventChannel

	// Mutex to serialize permission requests (only one dialog can be shown at a time)
	requestMu sync.Mutex
}

var (
	permissionsOnce sync.Once
	whenInUse       *Permission
	always          *Permission
)

func initPermissions() {
	permissionsOnce.Do(func() {
		whenInUse = newPermission("location")
		always = newPermission("location_always")
	})
}

// LocationWhenInUse is the permission for foreground location access.
func LocationWhenInUse() *Permission {
	initPermissions()
	return whenInUse
}

// LocationAlways is the permission for background location access.
// On iOS, WhenInUse must be granted before requesting Always.
func LocationAlways() *Permission {
	initPermissions()
	return always
}

func newPermission(name string) *Permission {
	return &Permission{
		name:    name,
		channel: platform.NewMethodChannel(permissionsChannelName),
		changes: getPermissionChangesChannel(),
	}
}

// Status returns the current status of the permission.
func (p *Permission) Status() (PermissionStatus, error) {
	result, err := p.channel.Invoke("check", map[string]any{
		"permission": p.name,
	})
	if err != nil {
		return PermissionUnknown, err
	}
	return parsePermissionStatus(result), nil
}

// Request requests the permission from the user and blocks until the user
// responds or DefaultPermissionTimeout is exceeded.
func (p *Permission) Request() (PermissionStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultPermissionTimeout)
	defer cancel()
	return p.RequestWithContext(ctx)
}

// RequestWithContext requests the permission from the user and blocks until
// the user responds, the context is canceled, or the deadline is exceeded.
// If the permission is already in a terminal state, it returns immediately
// without showing a dialog.
func (p *Permission) RequestWithContext(ctx context.Context) (PermissionStatus, error) {
	p.requestMu.Lock()
	defer p.requestMu.Unlock()

	// Return immediately if already in terminal state
	currentStatus, err := p.Status()
	if err != nil {
		return PermissionUnknown, err
	}
	if isTerminalPermission(currentStatus) {
		return currentStatus, nil
	}

	// Subscribe BEFORE triggering native request to avoid race condition
	resultChan := make(chan PermissionStatus, 1)
	sub := p.changes.Listen(platform.EventHandler{
		OnEvent: func(data any) {
			change, ok := parsePermissionChange(data)
			if ok && change.permission == p.name {
				select {
				case resultChan <- change.status:
				default:
				}
			}
		},
		OnError: func(err error) {
			errors.Report(&errors.PluginError{
				Op:      "permission.request",
				Kind:    errors.KindPermission,
				Channel: permissionChangesChannelName,
				Err:     err,
			})
		},
	})
	defer sub.Cancel()

	// Trigger native request
	_, err = p.channel.Invoke("request", map[string]any{"permission": p.name})
	if err != nil {
		return PermissionUnknown, err
	}

	// Wait for result or timeout
	select {
	case result := <-resultChan:
		return result, nil
	case <-ctx.Done():
		// Re-check status in case we missed the event
		if finalStatus, err := p.Status(); err == nil && isTerminalPermission(finalStatus) {
			return finalStatus, nil
		}
		if ctx.Err() == context.DeadlineExceeded {
			return PermissionUnknown, platform.ErrTimeout
		}
		return PermissionUnknown, platform.ErrCanceled
	}
}

// IsGranted returns true if the permission is currently granted.
// Best-effort convenience: returns false on any error.
func (p *Permission) IsGranted() bool {
	status, err := p.Status()
	if err != nil {
		return false
	}
	return status == PermissionGranted
}

// Listen subscribes to status changes for this permission and returns an
// unsubscribe function.
func (p *Permission) Listen(fn func(PermissionStatus)) (unsubscribe func()) {
	sub := p.changes.Listen(platform.EventHandler{
		OnEvent: func(data any) {
			change, ok := parsePermissionChange(data)
			if ok && change.permission == p.name {
				fn(change.status)
			}
		},
	})
	return sub.Cancel
}

// OpenAppSettings opens the system settings page for this app, where users
// can manage permissions manually. Use this when a permission is permanently
// denied and the app cannot request it again.
func OpenAppSettings() error {
	channel := platform.NewMethodChannel(permissionsChannelName)
	_, err := channel.Invoke("openSettings", nil)
	return err
}

// permissionChange represents a permission status change event.
type permissionChange struct {
	permission string
	status     PermissionStatus
}

func parsePermissionStatus(result any) PermissionStatus {
	if m, ok := result.(map[string]any); ok {
		if status := parseString(m["status"]); status != "" {
			return PermissionStatus(status)
		}
	}
	return PermissionUnknown
}

func parsePermissionChange(data any) (permissionChange, bool) {
	m, ok := data.(map[string]any)
	if !ok {
		return permissionChange{}, false
	}
	name := parseString(m["permission"])
	status := parseString(m["status"])
	if name == "" || status == "" {
		return permissionChange{}, false
	}
	return permissionChange{permission: name, status: PermissionStatus(status)}, true
}
