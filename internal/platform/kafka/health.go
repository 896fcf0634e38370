// Package kafka holds broker-level helpers shared by the producer and consumer.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrNoBrokers is returned when the broker list is empty.
var ErrNoBrokers = errors.New("kafka brokers not configured")

// Brokers splits a comma separated broker list, dropping blanks.
func Brokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// HealthChecker checks Kafka broker connectivity.
type HealthChecker struct {
	brokers []string
	timeout time.Duration
}

// NewHealthChecker creates a health checker for a comma separated broker list.
func NewHealthChecker(brokers string) *HealthChecker {
	return &HealthChecker{
		brokers: Brokers(brokers),
		timeout: 5 * time.Second,
	}
}

// Check returns nil if at least one broker accepts a TCP connection.
func (h *HealthChecker) Check(ctx context.Context) error {
	if len(h.brokers) == 0 {
		return ErrNoBrokers
	}

	dialer := net.Dialer{Timeout: h.timeout}
	var lastErr error
	for _, broker := range h.brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		_ = conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka brokers reachable: %w", lastErr)
}

// Name returns the check name for health reporting.
func (h *HealthChecker) Name() string {
	return "kafka"
}
