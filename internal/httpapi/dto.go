package httpapi

import (
	"time"

	"github.com/hamed0406/portwatch/internal/domain"
	"github.com/hamed0406/portwatch/internal/probe"
	"github.com/hamed0406/portwatch/internal/registry"
)

// Durations and instants are exposed in milliseconds.

type endpointDTO struct {
	Endpoint       string             `json:"endpoint"`
	Host           string             `json:"host"`
	Port           int                `json:"port"`
	Status         domain.Status      `json:"status"`
	IntervalMS     int64              `json:"interval_ms"`
	GracePeriodMS  int64              `json:"grace_period_ms"`
	InGracePeriod  bool               `json:"in_grace_period"`
	Outage         *outageDTO         `json:"outage,omitempty"`
	LastTransition *domain.Transition `json:"last_transition,omitempty"`
	LastProbe      *probeDTO          `json:"last_probe,omitempty"`
	LastCheckedAt  *time.Time         `json:"last_checked_at,omitempty"`
	Observers      int                `json:"observers"`
	Armed          bool               `json:"armed"`
	Paused         bool               `json:"paused"`
	CreatedAt      time.Time          `json:"created_at"`
}

type outageDTO struct {
	StartMS int64 `json:"start_ms"`
	EndMS   int64 `json:"end_ms"`
}

type probeDTO struct {
	Reachable bool    `json:"reachable"`
	LatencyMS float64 `json:"latency_ms"`
	Reason    string  `json:"reason,omitempty"`
}

func toProbeDTO(r probe.Result) probeDTO {
	return probeDTO{Reachable: r.Reachable, LatencyMS: r.LatencyMS, Reason: r.Reason}
}

func toDTO(in registry.Info) endpointDTO {
	d := endpointDTO{
		Endpoint:       in.Endpoint.String(),
		Host:           in.Endpoint.Host,
		Port:           in.Endpoint.Port,
		Status:         in.Status,
		IntervalMS:     in.PollingInterval.Milliseconds(),
		GracePeriodMS:  in.GracePeriod.Milliseconds(),
		InGracePeriod:  in.InGracePeriod,
		LastTransition: in.LastTransition,
		Observers:      in.Observers,
		Armed:          in.Armed,
		Paused:         in.Paused,
		CreatedAt:      in.CreatedAt,
	}
	if in.Outage != nil {
		d.Outage = &outageDTO{StartMS: in.Outage.Start.UnixMilli(), EndMS: in.Outage.End.UnixMilli()}
	}
	if !in.LastCheckedAt.IsZero() {
		at := in.LastCheckedAt
		d.LastCheckedAt = &at
		p := toProbeDTO(in.LastProbe)
		d.LastProbe = &p
	}
	return d
}
