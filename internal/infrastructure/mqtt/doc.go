// Package mqtt provides MQTT client connectivity for the RS-485 bridge.
//
// This package manages:
//   - Connection to the Gray Logic broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// Gray Logic uses MQTT as the message bus connecting the Core to
// protocol bridges. This bridge publishes state and health under
// graylogic/{state,health}/rs485 and consumes commands from
// graylogic/command/rs485/+.
//
//	Gray Logic Core ↔ MQTT Broker ↔ RS-485 Bridge ↔ TCP gateway
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
//	    Topic:   "graylogic/health/rs485",
//	    Payload: lwtPayload,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("graylogic/command/rs485/+", 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
package mqtt
