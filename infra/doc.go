// Package infra contains the technical adapters of the service: the MQTT
// publisher, metrics sinks and the zerolog-backed logger. These packages
// depend only on the interfaces defined in the core packages.
package infra
