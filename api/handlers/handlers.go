package handlers

import (
	"github.com/feichai0017/certificate-processor/pkg/logger"
)

type Handlers struct {
	Certificate *CertificateHandler
	Health      *HealthHandler
}

func NewHandlers(
	service CertificateService,
	tasks TaskStatusReader,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Certificate: NewCertificateHandler(service, tasks, logger),
		Health:      NewHealthHandler(),
	}
}
