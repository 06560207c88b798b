package main

import (
	"strings"
	"testing"

	"instrumon/config"
	"instrumon/ingest"
)

func TestBuildConversionsOverrides(t *testing.T) {
	zero := 0.0
	scale := 2.0
	conv := buildConversions(config.ChannelsConfig{
		Temperature: config.ConversionConfig{Offset: &zero},
		Force:       config.ConversionConfig{Scale: &scale},
	})
	def := ingest.DefaultConversions()
	if conv.Pressure != def.Pressure || conv.Mass != def.Mass {
		t.Fatalf("unset kinds must keep defaults: %+v", conv)
	}
	if conv.Temperature.Offset != 0 || conv.Temperature.Scale != def.Temperature.Scale {
		t.Fatalf("temperature override not applied: %+v", conv.Temperature)
	}
	if conv.Force.Scale != 2 || conv.Force.Offset != 0 {
		t.Fatalf("force override not applied: %+v", conv.Force)
	}
}

func TestBuildSourceByKind(t *testing.T) {
	cases := []struct {
		cfg   config.SourceConfig
		name  string
		label string
	}{
		{config.SourceConfig{Kind: config.SourceWebSocket, URL: "ws://node:8888/websocket"}, "WebSocket", "ws://node:8888/websocket"},
		{config.SourceConfig{Kind: config.SourceTCP, Address: "node:9000", Transport: "ziutek"}, "TCP", "node:9000"},
		{config.SourceConfig{Kind: config.SourceMQTT, MQTT: config.MQTTConfig{Broker: "tcp://broker:1883", Topic: "rig/telemetry"}}, "MQTT", "rig/telemetry"},
	}
	for _, tc := range cases {
		src, label := buildSource(tc.cfg)
		if src.Name() != tc.name {
			t.Fatalf("kind %q: got source %q", tc.cfg.Kind, src.Name())
		}
		if !strings.HasPrefix(label, tc.name) || !strings.Contains(label, tc.label) {
			t.Fatalf("kind %q: unexpected label %q", tc.cfg.Kind, label)
		}
	}
}
