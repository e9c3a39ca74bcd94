// Package notify delivers alert notifications through shoutrrr service
// URLs (SMS gateways, messengers, webhooks). The fake implementation
// allows testing without a gateway.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"go.uber.org/zap"

	"github.com/sweeney/gasguard/internal/alert"
)

// ShoutrrrDispatcher sends alerts through shoutrrr. Gateway URLs come
// from configuration; contacts may carry their own service URL which is
// added per send.
type ShoutrrrDispatcher struct {
	urls []string
	log  *zap.Logger
}

// NewShoutrrrDispatcher creates a dispatcher with the configured gateway
// URLs. An empty list leaves the dispatcher unconfigured; the gate skips
// dispatch in that case.
func NewShoutrrrDispatcher(urls []string, logger *zap.Logger) *ShoutrrrDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShoutrrrDispatcher{urls: urls, log: logger}
}

// Configured reports whether any gateway URL is set.
func (d *ShoutrrrDispatcher) Configured() bool {
	return len(d.urls) > 0
}

// Send delivers the message to the gateway URLs plus any per-contact
// service URLs. Returns the number of deliveries that succeeded; an
// error only when every delivery failed.
func (d *ShoutrrrDispatcher) Send(ctx context.Context, contacts []alert.Contact, level alert.Level, message string) (int, error) {
	urls := append([]string{}, d.urls...)
	for _, c := range contacts {
		if c.URL != "" {
			urls = append(urls, c.URL)
		}
	}
	if len(urls) == 0 {
		return 0, fmt.Errorf("notify: no service urls")
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return 0, fmt.Errorf("notify: create sender: %w", err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	if deadline, ok := ctx.Deadline(); ok {
		sender.Timeout = time.Until(deadline)
	}

	params := &stypes.Params{"title": fmt.Sprintf("GasGuard %s alert", level)}
	errs := sender.Send(message, params)

	sent := 0
	var firstErr error
	for i, err := range errs {
		if err == nil {
			sent++
			continue
		}
		d.log.Warn("notify delivery failed", zap.Int("url_index", i), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	if sent == 0 && firstErr != nil {
		return 0, fmt.Errorf("notify: all deliveries failed: %w", firstErr)
	}
	return sent, nil
}
