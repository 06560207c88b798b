package main

import (
	"fmt"
	"time"

	"instrumon/config"
	"instrumon/ingest"
)

// buildSource returns the configured transport and a label for the header.
func buildSource(cfg config.SourceConfig) (ingest.Source, string) {
	dialTimeout := time.Duration(cfg.DialTimeoutSeconds) * time.Second
	switch cfg.Kind {
	case config.SourceMQTT:
		src := ingest.NewMQTTSource(ingest.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		return src, fmt.Sprintf("%s %s %s", src.Name(), cfg.MQTT.Broker, cfg.MQTT.Topic)
	case config.SourceTCP:
		idle := time.Duration(cfg.IdleTimeoutSeconds) * time.Second
		src := ingest.NewTCPSource(cfg.Address, cfg.Transport, dialTimeout, idle)
		return src, fmt.Sprintf("%s %s", src.Name(), cfg.Address)
	default:
		src := ingest.NewWebSocketSource(cfg.URL, dialTimeout)
		return src, fmt.Sprintf("%s %s", src.Name(), cfg.URL)
	}
}

// buildConversions layers the configured overrides on the built-in unit
// conversions.
func buildConversions(cfg config.ChannelsConfig) ingest.Conversions {
	conv := ingest.DefaultConversions()
	conv.Pressure = overrideLinear(conv.Pressure, cfg.Pressure)
	conv.Temperature = overrideLinear(conv.Temperature, cfg.Temperature)
	conv.Mass = overrideLinear(conv.Mass, cfg.Mass)
	conv.Force = overrideLinear(conv.Force, cfg.Force)
	return conv
}

func overrideLinear(base ingest.Linear, o config.ConversionConfig) ingest.Linear {
	if o.Scale != nil {
		base.Scale = *o.Scale
	}
	if o.Offset != nil {
		base.Offset = *o.Offset
	}
	return base
}
