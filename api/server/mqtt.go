package main

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fhmq/hmq/broker"
)

// BrokerConfig holds the ports of the embedded broker.
type BrokerConfig struct {
	Port     string
	HTTPPort string
	WsPort   string
}

func (c *BrokerConfig) withDefaults() *BrokerConfig {
	out := &BrokerConfig{Port: "1883", HTTPPort: "8080", WsPort: "8081"}
	if c == nil {
		return out
	}
	if c.Port != "" {
		out.Port = c.Port
	}
	if c.HTTPPort != "" {
		out.HTTPPort = c.HTTPPort
	}
	if c.WsPort != "" {
		out.WsPort = c.WsPort
	}
	return out
}

// StartMQTT starts an in-process broker and returns a client connected to
// it. Browsers subscribe over websockets at /mqtt.
func StartMQTT(config *BrokerConfig) (mqtt.Client, error) {
	config = config.withDefaults()
	b, err := broker.NewBroker(&broker.Config{
		Worker:   1024,
		Port:     config.Port,
		HTTPPort: config.HTTPPort,
		WsTLS:    false,
		WsPath:   "/mqtt",
		WsPort:   config.WsPort,
		Host:     "0.0.0.0",
	})
	if err != nil {
		return nil, fmt.Errorf("error starting broker: %w", err)
	}
	b.Start()

	mqttOpts := mqtt.NewClientOptions()
	mqttOpts.AddBroker("tcp://localhost:" + config.Port)
	mqttOpts.ClientID = "server-internal"
	cli := mqtt.NewClient(mqttOpts)
	tok := cli.Connect()
	didConnect := tok.WaitTimeout(2 * time.Second)
	if !didConnect {
		return nil, fmt.Errorf("timeout waiting for client")
	}
	if tok.Error() != nil {
		return nil, fmt.Errorf("error connecting to broker: %w", tok.Error())
	}

	return cli, nil
}
