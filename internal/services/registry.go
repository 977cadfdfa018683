package services

// Service defines the lifecycle contract every long-running component of
// the bridge daemon implements.
type Service interface {
	Start() error
	Stop() error
}
