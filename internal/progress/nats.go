package progress

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is the part of *nats.Conn the reporter needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSReporter publishes every event as JSON on Subject.
type NATSReporter struct {
	Conn    Publisher
	Subject string
}

func (n NATSReporter) Report(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := n.Conn.Publish(n.Subject, data); err != nil {
		log.Warn().Err(err).Str("subject", n.Subject).Msg("⚠️ Failed to publish progress event")
	}
}

// ConnectNATS dials url with unlimited reconnects.
func ConnectNATS(url string) (*nats.Conn, error) {
	opts := nats.GetDefaultOptions()
	opts.Url = url
	opts.Name = "orgsetup"
	opts.MaxReconnect = -1
	opts.ReconnectWait = 2 * time.Second
	opts.Timeout = 10 * time.Second

	nc, err := opts.Connect()
	if err != nil {
		return nil, err
	}
	nc.SetDisconnectErrHandler(func(_ *nats.Conn, err error) {
		log.Warn().Err(err).Msg("⚠️ NATS disconnected")
	})
	nc.SetReconnectHandler(func(nc *nats.Conn) {
		log.Info().Str("url", nc.ConnectedUrl()).Msg("🔄 NATS reconnected")
	})
	return nc, nil
}
