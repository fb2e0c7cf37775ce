package httpapi

import (
	"context"
	"fmt"

	"punchd/internal/attendance/service"
	"punchd/internal/geo"
)

// DeviceReport is what the client device observed for one attempt: its
// biometric prompt outcome, location permission state, and a single
// coordinate reading. The handler attaches it to the request context and the
// capability adapters below feed it into the gate chain.
type DeviceReport struct {
	Biometric  string   `json:"biometric"`  // granted | declined | failed
	Permission string   `json:"permission"` // authorized | denied | not_determined
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

type deviceReportKey struct{}

// WithDeviceReport attaches the device's gate observations to the context.
func WithDeviceReport(ctx context.Context, report DeviceReport) context.Context {
	return context.WithValue(ctx, deviceReportKey{}, report)
}

func deviceReportFrom(ctx context.Context) (DeviceReport, bool) {
	report, ok := ctx.Value(deviceReportKey{}).(DeviceReport)
	return report, ok
}

// ReportBiometric is the biometric capability backed by the device report.
type ReportBiometric struct{}

func (ReportBiometric) Authenticate(ctx context.Context, _ string) (service.BiometricDecision, error) {
	report, ok := deviceReportFrom(ctx)
	if !ok {
		return 0, fmt.Errorf("no device report in request")
	}
	switch report.Biometric {
	case "granted":
		return service.BiometricGranted, nil
	case "declined", "":
		return service.BiometricDeclined, nil
	default:
		return 0, fmt.Errorf("biometric prompt failed: %s", report.Biometric)
	}
}

// ReportLocation is the location capability backed by the device report.
type ReportLocation struct{}

func (ReportLocation) PermissionStatus(ctx context.Context) service.PermissionStatus {
	report, ok := deviceReportFrom(ctx)
	if !ok {
		return service.PermissionNotDetermined
	}
	switch report.Permission {
	case "authorized":
		return service.PermissionAuthorized
	case "denied":
		return service.PermissionDenied
	default:
		return service.PermissionNotDetermined
	}
}

func (ReportLocation) CurrentLocation(ctx context.Context) (geo.Point, error) {
	report, ok := deviceReportFrom(ctx)
	if !ok || report.Latitude == nil || report.Longitude == nil {
		return geo.Point{}, fmt.Errorf("no location reading in request")
	}
	return geo.Point{Latitude: *report.Latitude, Longitude: *report.Longitude}, nil
}
