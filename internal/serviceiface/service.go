// Package serviceiface is the lifecycle contract of every long-running part
// of the process.
package serviceiface

// Service is started and stopped by the app manager in services.yaml order.
type Service interface {
	Name() string
	Start() error
	Stop() error
}
