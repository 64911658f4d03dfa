// Package mqtt publishes display snapshots to an MQTT broker so remote
// dashboards can follow the pump. The broker connection is retried with
// exponential backoff at startup; once connected the paho client reconnects
// on its own.
package mqtt
